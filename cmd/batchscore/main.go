package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"titanic-predictor/internal/features"
	"titanic-predictor/internal/ml"
)

// batchscore scores a CSV of passengers offline. Input columns follow the
// training order: pclass,sex,age,sibsp,parch,fare (header optional, empty
// cells mean "not provided"). Output mirrors the input plus probability and
// survived columns.
func main() {
	var (
		inPath    = flag.String("in", "", "Input CSV of passengers")
		outPath   = flag.String("out", "", "Output CSV (default stdout)")
		modelPath = flag.String("model", "model.onnx", "Path to ONNX model")
		ortLib    = flag.String("ort", "", "Path to onnxruntime shared library")
		fallback  = flag.Bool("fallback", false, "Score with the heuristic fallback instead of a model")
		logLevel  = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *inPath == "" {
		log.Fatal().Msg("-in is required")
	}

	scorer, err := openScorer(*modelPath, *ortLib, *fallback)
	if err != nil {
		log.Fatal().Err(err).Msg("scorer unavailable")
	}
	defer scorer.Close()

	predictor := ml.NewPredictor(ml.StaticProvider{S: scorer}, nil, 0)

	in, err := os.Open(*inPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open input")
	}
	defer in.Close()

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Fatal().Err(err).Msg("create output")
		}
		defer f.Close()
		out = f
	}

	scored, skipped, err := scoreCSV(in, out, predictor)
	if err != nil {
		log.Fatal().Err(err).Msg("batch scoring failed")
	}
	log.Info().Int("scored", scored).Int("skipped", skipped).Msg("batch complete")
}

func openScorer(modelPath, ortLib string, fallback bool) (ml.Scorer, error) {
	if fallback {
		return ml.FallbackScorer{}, nil
	}
	return ml.NewONNXScorer(modelPath, ortLib)
}

func scoreCSV(in io.Reader, out io.Writer, predictor *ml.Predictor) (scored, skipped int, err error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	writer := csv.NewWriter(out)
	defer writer.Flush()

	header := append(append([]string{}, features.Names[:]...), "probability", "survived")
	if err := writer.Write(header); err != nil {
		return 0, 0, err
	}

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return scored, skipped, err
		}
		if len(rec) > 0 && rec[0] == "pclass" {
			continue // header row
		}

		input, err := parseRow(rec)
		if err != nil {
			log.Warn().Err(err).Strs("row", rec).Msg("skipping row")
			skipped++
			continue
		}

		pred, err := predictor.Predict(input)
		if err != nil {
			return scored, skipped, err
		}

		row := make([]string, 0, features.VectorSize+2)
		for _, v := range input.Vector() {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		row = append(row,
			strconv.FormatFloat(pred.Probability, 'g', -1, 64),
			strconv.FormatBool(pred.Survived))
		if err := writer.Write(row); err != nil {
			return scored, skipped, err
		}
		scored++
	}

	return scored, skipped, nil
}

func parseRow(rec []string) (features.PassengerInput, error) {
	if len(rec) < 2 {
		return features.PassengerInput{}, fmt.Errorf("expected at least pclass and sex, got %d columns", len(rec))
	}

	pclass, err := strconv.ParseFloat(rec[0], 64)
	if err != nil {
		return features.PassengerInput{}, fmt.Errorf("pclass: %w", err)
	}
	sex, err := strconv.ParseFloat(rec[1], 64)
	if err != nil {
		return features.PassengerInput{}, fmt.Errorf("sex: %w", err)
	}

	input := features.PassengerInput{Pclass: pclass, Sex: sex}
	optional := []**float64{&input.Age, &input.SibSp, &input.Parch, &input.Fare}
	for i, dst := range optional {
		col := i + 2
		if col >= len(rec) || rec[col] == "" {
			continue
		}
		v, err := strconv.ParseFloat(rec[col], 64)
		if err != nil {
			return features.PassengerInput{}, fmt.Errorf("%s: %w", features.Names[col], err)
		}
		*dst = &v
	}

	if err := input.Validate(); err != nil {
		return features.PassengerInput{}, err
	}
	return input, nil
}

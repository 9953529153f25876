// Package features defines the passenger feature vector fed to the survival
// model and the min-max scaling that maps raw inputs onto the range the
// model was trained on.
package features

// Feature vector field order. The model was trained on exactly this
// ordering and it must never change without retraining.
const (
	IdxPclass = iota
	IdxSex
	IdxAge
	IdxSibSp
	IdxParch
	IdxFare

	VectorSize = 6
)

// Names lists the feature names in vector order.
var Names = [VectorSize]string{"pclass", "sex", "age", "sibsp", "parch", "fare"}

// Per-feature bounds observed at training time. Established once when the
// model was fitted; never mutated at runtime.
var (
	TrainMin = [VectorSize]float64{1.0, 0, 0.42, 0.0, 0.0, 0.0}
	TrainMax = [VectorSize]float64{3.0, 1, 80.0, 8.0, 6.0, 512.3292}
)

// Vector is one passenger's raw or normalized feature row.
type Vector [VectorSize]float64

// PassengerInput carries the six named model inputs. Age, SibSp, Parch and
// Fare are optional; a nil pointer means "not provided" and is scored as 0.
type PassengerInput struct {
	Pclass float64  `json:"pclass"`
	Sex    float64  `json:"sex"`
	Age    *float64 `json:"age,omitempty"`
	SibSp  *float64 `json:"sibsp,omitempty"`
	Parch  *float64 `json:"parch,omitempty"`
	Fare   *float64 `json:"fare,omitempty"`
}

// Vector assembles the raw feature vector in training order, substituting 0
// for absent optional fields.
func (p PassengerInput) Vector() Vector {
	return Vector{
		p.Pclass,
		p.Sex,
		orZero(p.Age),
		orZero(p.SibSp),
		orZero(p.Parch),
		orZero(p.Fare),
	}
}

// Validate rejects negative inputs. Anything else, including values above
// the training bounds, is accepted.
func (p PassengerInput) Validate() error {
	raw := p.Vector()
	for i, v := range raw {
		if v < 0 {
			return &NegativeFeatureError{Name: Names[i], Value: v}
		}
	}
	return nil
}

// Normalize rescales raw into the range the model saw during training using
// per-feature min-max scaling. A feature with a degenerate training range
// (max == min) maps to 0. No clamping: values outside the training bounds
// produce outputs outside [0,1] and are passed through as-is.
func Normalize(raw, min, max Vector) Vector {
	var out Vector
	for i := range raw {
		if max[i] == min[i] {
			out[i] = 0
			continue
		}
		out[i] = (raw[i] - min[i]) / (max[i] - min[i])
	}
	return out
}

// Row converts a vector to the float32 row shape the scorer consumes.
func (v Vector) Row() []float32 {
	row := make([]float32, VectorSize)
	for i, x := range v {
		row[i] = float32(x)
	}
	return row
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

package features

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FallbackCode is what inference substitutes for a categorical value that
// was never seen during training. It intentionally aliases the first trained
// code, mirroring the behavior the model was validated against.
const FallbackCode = 0

// Encoder is a frozen bijection between a training vocabulary and
// sequential integer codes. Codes are assigned in sorted vocabulary order,
// so refitting on the same table reproduces the same mapping. Immutable
// after FitEncoder.
type Encoder struct {
	classes []string
	index   map[string]int
}

// FitEncoder builds an encoder over the unique values observed in training.
func FitEncoder(values []string) *Encoder {
	uniq := make(map[string]struct{}, len(values))
	for _, v := range values {
		uniq[v] = struct{}{}
	}
	classes := make([]string, 0, len(uniq))
	for v := range uniq {
		classes = append(classes, v)
	}
	sort.Strings(classes)

	index := make(map[string]int, len(classes))
	for i, v := range classes {
		index[v] = i
	}
	return &Encoder{classes: classes, index: index}
}

// Lookup returns the trained code for v. ok is false when v is outside the
// training vocabulary; the caller decides the fallback policy.
func (e *Encoder) Lookup(v string) (code int, ok bool) {
	code, ok = e.index[v]
	return code, ok
}

// Decode returns the vocabulary value for a trained code.
func (e *Encoder) Decode(code int) (string, bool) {
	if code < 0 || code >= len(e.classes) {
		return "", false
	}
	return e.classes[code], true
}

// Size returns the vocabulary size.
func (e *Encoder) Size() int { return len(e.classes) }

// Classes returns a copy of the trained vocabulary in code order.
func (e *Encoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

type encoderJSON struct {
	Classes []string `json:"classes"`
}

func (e *Encoder) MarshalJSON() ([]byte, error) {
	return json.Marshal(encoderJSON{Classes: e.classes})
}

func (e *Encoder) UnmarshalJSON(data []byte) error {
	var raw encoderJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode encoder: %w", err)
	}
	e.classes = raw.Classes
	e.index = make(map[string]int, len(raw.Classes))
	for i, v := range raw.Classes {
		e.index[v] = i
	}
	return nil
}

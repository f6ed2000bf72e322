package app

import (
	"math"
	"strings"

	"github.com/tidwall/gjson"

	"human-guard/internal/domain/entity"
)

const (
	keyPrediction     = "Prediction"
	keyRealConfidence = "Real Confidence"
	keyFakeConfidence = "Fake Confidence"
)

// predictionStrategy пытается распознать одну форму ответа.
type predictionStrategy func(value gjson.Result) (entity.Verdict, bool)

// Порядок важен: первая сработавшая стратегия определяет вердикт.
var predictionStrategies = []predictionStrategy{
	fromPredictionField,
	fromConfidenceKeys,
	fromScalarLabel,
}

// NormalizePrediction приводит поле prediction произвольной формы к вердикту.
// Никогда не возвращает ошибку: нераспознанный ответ даёт LabelUnknown.
func NormalizePrediction(raw []byte) entity.Verdict {
	value := gjson.ParseBytes(raw)

	// Строка может содержать JSON, а может быть просто меткой.
	if value.Type == gjson.String {
		text := value.String()
		if !gjson.Valid(text) {
			return labelVerdict(text)
		}
		value = gjson.Parse(text)
	}

	for _, strategy := range predictionStrategies {
		if verdict, ok := strategy(value); ok {
			return verdict
		}
	}
	return entity.UnknownVerdict()
}

// fromPredictionField: {"Prediction": "...", "Real Confidence": x, "Fake Confidence": y}
func fromPredictionField(value gjson.Result) (entity.Verdict, bool) {
	if !value.IsObject() {
		return entity.Verdict{}, false
	}
	label, ok := field(value, keyPrediction)
	if !ok {
		return entity.Verdict{}, false
	}
	realValue, _ := field(value, keyRealConfidence)
	fakeValue, _ := field(value, keyFakeConfidence)

	verdict := labelVerdict(label.String())
	verdict.RealConfidence = confidence(realValue)
	verdict.FakeConfidence = confidence(fakeValue)
	return verdict, true
}

// fromConfidenceKeys ищет ключи, содержащие "fake" и "real", без учёта регистра.
func fromConfidenceKeys(value gjson.Result) (entity.Verdict, bool) {
	if !value.IsObject() {
		return entity.Verdict{}, false
	}

	var realValue, fakeValue gjson.Result
	var haveReal, haveFake bool
	value.ForEach(func(key, v gjson.Result) bool {
		name := strings.ToLower(key.String())
		if !haveFake && strings.Contains(name, "fake") {
			fakeValue, haveFake = v, true
		}
		if !haveReal && strings.Contains(name, "real") {
			realValue, haveReal = v, true
		}
		return !(haveReal && haveFake)
	})

	verdict := entity.Verdict{
		RealConfidence: confidence(realValue),
		FakeConfidence: confidence(fakeValue),
	}
	if verdict.FakeConfidence > verdict.RealConfidence {
		verdict.Label = entity.LabelFake
	} else {
		verdict.Label = entity.LabelReal
	}
	return verdict, true
}

// fromScalarLabel: строка, число или bool используются как метка.
func fromScalarLabel(value gjson.Result) (entity.Verdict, bool) {
	switch value.Type {
	case gjson.String, gjson.Number, gjson.True, gjson.False:
		return labelVerdict(value.String()), true
	}
	return entity.Verdict{}, false
}

func labelVerdict(label string) entity.Verdict {
	verdict := entity.Verdict{Label: entity.LabelReal, RawLabel: label}
	if strings.Contains(strings.ToLower(label), "fake") {
		verdict.Label = entity.LabelFake
	}
	return verdict
}

// field ищет ключ объекта по точному совпадению имени.
func field(object gjson.Result, name string) (gjson.Result, bool) {
	var found gjson.Result
	var ok bool
	object.ForEach(func(key, v gjson.Result) bool {
		if key.String() == name {
			found, ok = v, true
			return false
		}
		return true
	})
	return found, ok
}

func confidence(value gjson.Result) float64 {
	if !value.Exists() {
		return 0
	}
	c := value.Float()
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

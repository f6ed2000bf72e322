package entity

import "math"

// VerdictLabel итоговая метка классификации
type VerdictLabel string

const (
	LabelReal    VerdictLabel = "Real"
	LabelFake    VerdictLabel = "Fake"
	LabelUnknown VerdictLabel = "Unknown"
)

// Verdict нормализованный ответ сервиса детекции
type Verdict struct {
	Label          VerdictLabel // Real, Fake или Unknown
	RawLabel       string       // текст метки из ответа, если он был
	RealConfidence float64      // уверенность в подлинности, [0,1]
	FakeConfidence float64      // уверенность в подделке, [0,1]
}

// UnknownVerdict возвращает вердикт для нераспознанного ответа.
func UnknownVerdict() Verdict {
	return Verdict{Label: LabelUnknown}
}

// IsFake сообщает, помечено ли изображение как подделка
func (v Verdict) IsFake() bool {
	return v.Label == LabelFake
}

// RealPercent уверенность в подлинности в целых процентах
func (v Verdict) RealPercent() int {
	return percent(v.RealConfidence)
}

// FakePercent уверенность в подделке в целых процентах
func (v Verdict) FakePercent() int {
	return percent(v.FakeConfidence)
}

// Headline заголовок для отображения пользователю
func (v Verdict) Headline() string {
	switch v.Label {
	case LabelFake:
		return "⚠️ POTENTIAL DEEPFAKE"
	case LabelReal:
		return "✅ LIKELY REAL"
	default:
		return "❔ UNABLE TO DETERMINE"
	}
}

// Проценты считаются независимо, сумма не обязана быть 100.
func percent(confidence float64) int {
	return int(math.Round(confidence * 100))
}

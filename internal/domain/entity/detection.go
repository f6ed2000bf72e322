package entity

import "time"

// DetectionResponse ответ сервиса детекции до нормализации
type DetectionResponse struct {
	Status     string // поле status ответа
	Filename   string // имя файла, как его увидел сервис
	LogID      int64  // идентификатор записи журнала на стороне сервиса
	Prediction []byte // сырое поле prediction, любой JSON или nil
}

// DetectionRecord запись истории проверок пользователя
type DetectionRecord struct {
	ID             int64
	AccountID      string
	Filename       string
	Label          VerdictLabel
	RealConfidence float64
	FakeConfidence float64
	RawPrediction  string
	CreatedAt      time.Time
}

// Verdict восстанавливает вердикт из записи
func (r DetectionRecord) Verdict() Verdict {
	return Verdict{
		Label:          r.Label,
		RealConfidence: r.RealConfidence,
		FakeConfidence: r.FakeConfidence,
	}
}

package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/privatep88/Petty-Cash/internal/core"
)

// PeriodSavedMessage announces that a period was written to the store.
// It carries only the key; consumers read the period from the store.
type PeriodSavedMessage struct {
	Key       string    `json:"key"`
	Year      string    `json:"year"`
	Month     string    `json:"month"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPeriodSavedMessage(year, month string) *PeriodSavedMessage {
	return &PeriodSavedMessage{
		Key:       core.PeriodKey(year, month),
		Year:      year,
		Month:     month,
		Timestamp: time.Now(),
	}
}

func (m *PeriodSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PeriodSavedMessageFromJSON decodes a message, filling year and month
// from the key for producers that only send the key.
func PeriodSavedMessageFromJSON(data []byte) (*PeriodSavedMessage, error) {
	var msg PeriodSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Year == "" || msg.Month == "" {
		year, month, err := core.SplitKey(msg.Key)
		if err != nil {
			return nil, err
		}
		msg.Year, msg.Month = year, month
	}
	if msg.Key == "" {
		msg.Key = core.PeriodKey(msg.Year, msg.Month)
	}
	if msg.Key != core.PeriodKey(msg.Year, msg.Month) {
		return nil, errors.New("message key does not match year and month")
	}
	return &msg, nil
}

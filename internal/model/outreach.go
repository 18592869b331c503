package model

import "time"

// OutreachType はアウトリーチの手段を表す。
type OutreachType string

const (
	OutreachTypeLIConnect OutreachType = "LI-connect"
	OutreachTypeLIDM      OutreachType = "LI-dm"
	OutreachTypeEmail     OutreachType = "email"
)

// DefaultOutreachType はフォームをリセットした際の種別。
const DefaultOutreachType = OutreachTypeLIConnect

// IsValid は既知の種別かどうかを返す。
func (t OutreachType) IsValid() bool {
	switch t {
	case OutreachTypeLIConnect, OutreachTypeLIDM, OutreachTypeEmail:
		return true
	default:
		return false
	}
}

// OutreachEvent はoutreach-eventsに追記される不変のイベント記録。
type OutreachEvent struct {
	ID            string
	ApplicationID string
	Timestamp     time.Time
	Target        string
	Type          OutreachType
	Message       string
	Note          string
}

package sse

import "github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"

const (
	// TopicAttendance carries every attendance event, for HR dashboards.
	TopicAttendance = "attendance"
)

// UserTopic carries the events of a single user.
func UserTopic(userID string) string {
	return "user:" + userID
}

// AttendancePublisher forwards attendance events to the hub.
type AttendancePublisher struct {
	hub *Hub
}

func NewAttendancePublisher(hub *Hub) *AttendancePublisher {
	return &AttendancePublisher{hub: hub}
}

// Publish implements attendance.EventPublisher.
func (p *AttendancePublisher) Publish(e attendance.Event) {
	topics := []string{TopicAttendance}
	if e.UserID != "" {
		topics = append(topics, UserTopic(e.UserID))
	}
	p.hub.PublishToMany(topics, Event{Event: string(e.Type), Data: e})
}

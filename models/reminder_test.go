package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReminderValidateSendTime(t *testing.T) {
	tests := []struct {
		sendTime string
		wantErr  bool
	}{
		{"09:00", false},
		{"23:59", false},
		{"00:00", false},
		{"25:00", true},
		{"9am", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.sendTime, func(t *testing.T) {
			err := (&Reminder{SendTime: tt.sendTime}).ValidateSendTime()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

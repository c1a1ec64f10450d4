package player_test

import (
	"math"
	"testing"
	"time"

	"github.com/edumarques81/stellar-online/internal/domain/player"
)

func TestFormatTime(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{65.9, "1:05"},
		{600, "10:00"},
		{math.NaN(), "0:00"},
		{math.Inf(1), "0:00"},
		{math.Inf(-1), "0:00"},
		{-3, "0:00"},
	}
	for _, tt := range tests {
		if got := player.FormatTime(tt.in); got != tt.want {
			t.Errorf("FormatTime(%v): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	if got := player.FormatDuration(3*time.Minute + 7*time.Second); got != "3:07" {
		t.Errorf("expected 3:07, got %q", got)
	}
}

func TestStateToJSON(t *testing.T) {
	st := player.State{Status: player.StatusStop, Repeat: player.RepeatAll}
	m := st.ToJSON()
	if m["repeat"] != "all" {
		t.Errorf("expected repeat all, got %v", m["repeat"])
	}
	if _, ok := m["trackId"]; ok {
		t.Error("no track fields expected without a current track")
	}
}

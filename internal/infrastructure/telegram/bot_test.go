package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestParseTarget(t *testing.T) {
	cases := []struct {
		in   string
		want Target
	}{
		{"-1001234", Target{ChatID: -1001234}},
		{"@supply_orders", Target{Username: "@supply_orders"}},
		{" supply_orders ", Target{Username: "@supply_orders"}},
	}
	for _, c := range cases {
		got, err := ParseTarget(c.in)
		if err != nil {
			t.Fatalf("ParseTarget(%q) error = %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseTarget(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
	if _, err := ParseTarget(" "); err == nil {
		t.Fatalf("ParseTarget(empty) expected error")
	}
}

func TestTargetMatches(t *testing.T) {
	byName := Target{Username: "@Supply_Orders"}
	if !byName.Matches(&tgbotapi.Chat{ID: 5, UserName: "supply_orders"}) {
		t.Fatalf("username target should match case-insensitively")
	}
	if byName.Matches(&tgbotapi.Chat{ID: 5, UserName: "other"}) || byName.Matches(nil) {
		t.Fatalf("username target matched a different chat")
	}
	byID := Target{ChatID: -100}
	if !byID.Matches(&tgbotapi.Chat{ID: -100}) || byID.Matches(&tgbotapi.Chat{ID: -101}) {
		t.Fatalf("id target match is wrong")
	}
}

func TestNewBotRequiresToken(t *testing.T) {
	if _, err := NewBot("", nil, ""); err == nil {
		t.Fatalf("NewBot() expected error")
	}
	bot, err := NewBot("123:abc", nil, "")
	if err != nil {
		t.Fatalf("NewBot() error = %v", err)
	}
	if bot.Token != "123:abc" || bot.Client == nil {
		t.Fatalf("NewBot() = %+v", bot)
	}
}

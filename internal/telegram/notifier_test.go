package telegram

import (
	"errors"
	"strings"
	"testing"

	"stockwatch-telegram-bot/internal/types"
)

type fakeSender struct {
	messages []Message
	photos   []string
	charts   []string
	failFor  string
}

func (f *fakeSender) SendMessage(m Message) error {
	if f.failFor != "" && strings.Contains(m.Text, f.failFor) {
		return errors.New("telegram unavailable")
	}
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeSender) SendPhotoURL(chatID int64, photoURL, caption string) error {
	if f.failFor != "" && strings.Contains(caption, f.failFor) {
		return errors.New("telegram unavailable")
	}
	f.photos = append(f.photos, caption)
	return nil
}

func (f *fakeSender) SendPhotoBytes(chatID int64, name string, data []byte, caption string) error {
	f.charts = append(f.charts, caption)
	return nil
}

func productIndex() types.CategoryState {
	return types.CategoryState{
		"1001": {
			ID:         "1001",
			Name:       "Verse Graphic Tee",
			Price:      "₹499",
			Category:   "men",
			Sizes:      map[string]int{"M": 3, "L": 0},
			ImageURL:   "https://img.example.com/1001.jpg",
			ProductURL: "https://www.example.com/p-1001.html",
		},
		"1002": {
			ID:         "1002",
			Name:       "Verse Cargo Pants",
			Price:      "₹1,299",
			Category:   "men",
			Sizes:      map[string]int{"XL": 2},
			ProductURL: "https://www.example.com/p-1002.html",
		},
	}
}

func TestNotifyChanges(t *testing.T) {
	t.Run("new product goes out as a photo card", func(t *testing.T) {
		sender := &fakeSender{}
		n := NewNotifier(sender, 42)

		events := []types.ChangeEvent{
			{Kind: types.EventNewProduct, ProductID: "1001", NewQuantity: 3},
		}
		sent := n.NotifyChanges("men", events, productIndex())

		if sent != 1 {
			t.Fatalf("sent = %d, want 1", sent)
		}
		if len(sender.photos) != 1 {
			t.Fatalf("expected a photo message, got %d photos %d texts", len(sender.photos), len(sender.messages))
		}
		caption := sender.photos[0]
		if !strings.Contains(caption, "Verse Graphic Tee") {
			t.Errorf("caption missing product name: %q", caption)
		}
		if !strings.Contains(caption, "shein://product?id=1001") {
			t.Errorf("caption missing app deep link: %q", caption)
		}
		if strings.Contains(caption, "`L`") {
			t.Errorf("sold-out size should not be listed: %q", caption)
		}
	})

	t.Run("product without image falls back to text", func(t *testing.T) {
		sender := &fakeSender{}
		n := NewNotifier(sender, 42)

		events := []types.ChangeEvent{
			{Kind: types.EventNewProduct, ProductID: "1002", NewQuantity: 2},
		}
		sent := n.NotifyChanges("men", events, productIndex())

		if sent != 1 || len(sender.messages) != 1 {
			t.Fatalf("expected one text message, got %+v", sender)
		}
	})

	t.Run("restock message shows quantity transition", func(t *testing.T) {
		sender := &fakeSender{}
		n := NewNotifier(sender, 42)

		events := []types.ChangeEvent{
			{Kind: types.EventRestock, ProductID: "1001", Size: "M", OldQuantity: 0, NewQuantity: 3},
		}
		sent := n.NotifyChanges("men", events, productIndex())

		if sent != 1 || len(sender.messages) != 1 {
			t.Fatalf("expected one message, got %+v", sender)
		}
		text := sender.messages[0].Text
		if !strings.Contains(text, "0 → 3") {
			t.Errorf("message missing transition: %q", text)
		}
	})

	t.Run("failed delivery does not stop remaining events", func(t *testing.T) {
		sender := &fakeSender{failFor: "Graphic Tee"}
		n := NewNotifier(sender, 42)

		events := []types.ChangeEvent{
			{Kind: types.EventNewProduct, ProductID: "1001", NewQuantity: 3},
			{Kind: types.EventNewProduct, ProductID: "1002", NewQuantity: 2},
		}
		sent := n.NotifyChanges("men", events, productIndex())

		if sent != 1 {
			t.Errorf("sent = %d, want 1 despite one failure", sent)
		}
	})

	t.Run("event without snapshot is skipped", func(t *testing.T) {
		sender := &fakeSender{}
		n := NewNotifier(sender, 42)

		events := []types.ChangeEvent{
			{Kind: types.EventRestock, ProductID: "deleted", Size: "M", NewQuantity: 1},
		}
		sent := n.NotifyChanges("men", events, productIndex())

		if sent != 0 {
			t.Errorf("sent = %d, want 0", sent)
		}
	})
}

func TestSendSummary(t *testing.T) {
	t.Run("with chart attaches photo bytes", func(t *testing.T) {
		sender := &fakeSender{}
		n := NewNotifier(sender, 42)

		n.SendSummary("men", types.CategoryStats{TotalProducts: 30, NewToday: 2}, []byte{1, 2, 3})

		if len(sender.charts) != 1 {
			t.Fatalf("expected chart photo, got %+v", sender)
		}
		if !strings.Contains(sender.charts[0], "30") {
			t.Errorf("summary missing product count: %q", sender.charts[0])
		}
	})

	t.Run("without chart sends plain message", func(t *testing.T) {
		sender := &fakeSender{}
		n := NewNotifier(sender, 42)

		n.SendSummary("men", types.CategoryStats{TotalProducts: 30}, nil)

		if len(sender.messages) != 1 || len(sender.charts) != 0 {
			t.Fatalf("expected a text summary, got %+v", sender)
		}
	})
}

func TestAppDeepLink(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://www.example.com/p-12345.html", "shein://product?id=12345"},
		{"https://www.example.com/category", "https://www.example.com/category"},
	}
	for _, tc := range cases {
		if got := appDeepLink(tc.url); got != tc.want {
			t.Errorf("appDeepLink(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

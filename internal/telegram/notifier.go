package telegram

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"stockwatch-telegram-bot/internal/types"
	"stockwatch-telegram-bot/lib/helpers"
	"stockwatch-telegram-bot/lib/translation"
)

// Sender is the part of Bot the notifier needs.
type Sender interface {
	SendMessage(m Message) error
	SendPhotoURL(chatID int64, photoURL, caption string) error
	SendPhotoBytes(chatID int64, name string, data []byte, caption string) error
}

// Notifier renders detection cycle events into Telegram messages.
// Delivery is best-effort: a failed send is logged and skipped, it
// never blocks persistence of the new state.
type Notifier struct {
	sender    Sender
	chatID    int64
	startedAt time.Time
}

func NewNotifier(sender Sender, chatID int64) *Notifier {
	return &Notifier{
		sender:    sender,
		chatID:    chatID,
		startedAt: time.Now(),
	}
}

var productIDPattern = regexp.MustCompile(`p-(\d+)\.html`)

// appDeepLink builds the store app link for a product page URL.
func appDeepLink(productURL string) string {
	matches := productIDPattern.FindStringSubmatch(productURL)
	if len(matches) == 2 {
		return "shein://product?id=" + matches[1]
	}
	return productURL
}

// NotifyChanges sends one message per change event, new arrivals first
// (the events arrive already ordered). Returns the number of messages
// actually delivered.
func (n *Notifier) NotifyChanges(category string, events []types.ChangeEvent, index types.CategoryState) int {
	sent := 0
	for _, ev := range events {
		snap, ok := index[ev.ProductID]
		if !ok {
			log.Warnf("no snapshot for product %s, skipping notification", ev.ProductID)
			continue
		}

		var err error
		switch ev.Kind {
		case types.EventNewProduct:
			err = n.sendProductCard(snap, translation.Translate("NEW PRODUCT"), "🆕")
		case types.EventRestock:
			err = n.sendStockChange(snap, ev, translation.Translate("RESTOCK"), "⚡")
		case types.EventSizeAdded:
			err = n.sendStockChange(snap, ev, translation.Translate("SIZE ADDED"), "📏")
		case types.EventOutOfStock:
			err = n.sendStockChange(snap, ev, translation.Translate("OUT OF STOCK"), "📉")
		}

		if err != nil {
			log.Errorf("failed to send %s notification for %s: %v", ev.Kind, ev.ProductID, err)
			continue
		}
		sent++
	}
	return sent
}

func (n *Notifier) sendProductCard(snap types.ProductSnapshot, title, emoji string) error {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s *%s* %s\n\n", emoji, helpers.EscapeMarkdownV2(title), emoji))
	sb.WriteString(fmt.Sprintf("🏷️ *%s*\n", helpers.EscapeMarkdownV2(snap.Name)))
	sb.WriteString(fmt.Sprintf("💰 %s: %s\n", helpers.EscapeMarkdownV2(translation.Translate("Price")), helpers.EscapeMarkdownV2(snap.Price)))
	sb.WriteString(sizeLines(snap.Sizes))
	sb.WriteString(fmt.Sprintf("📦 %s: %s\n\n", helpers.EscapeMarkdownV2(translation.Translate("Total stock")), helpers.FormatCountUS(snap.TotalStock(), true)))
	sb.WriteString(fmt.Sprintf("🛒 [%s](%s)\n", helpers.EscapeMarkdownV2(translation.Translate("Open in app")), appDeepLink(snap.ProductURL)))
	sb.WriteString(fmt.Sprintf("🔗 [%s](%s)", helpers.EscapeMarkdownV2(translation.Translate("Product page")), snap.ProductURL))

	if snap.ImageURL != "" {
		return n.sender.SendPhotoURL(n.chatID, snap.ImageURL, sb.String())
	}
	return n.sender.SendMessage(Message{ChatID: n.chatID, Text: sb.String()})
}

func (n *Notifier) sendStockChange(snap types.ProductSnapshot, ev types.ChangeEvent, title, emoji string) error {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s *%s*\n\n", emoji, helpers.EscapeMarkdownV2(title)))
	sb.WriteString(fmt.Sprintf("🏷️ *%s*\n", helpers.EscapeMarkdownV2(snap.Name)))
	sb.WriteString(fmt.Sprintf("📏 %s `%s`: %d → %d\n", helpers.EscapeMarkdownV2(translation.Translate("Size")),
		helpers.EscapeMarkdownV2(ev.Size), ev.OldQuantity, ev.NewQuantity))
	sb.WriteString(fmt.Sprintf("🔗 [%s](%s)", helpers.EscapeMarkdownV2(translation.Translate("Product page")), snap.ProductURL))

	return n.sender.SendMessage(Message{ChatID: n.chatID, Text: sb.String()})
}

func sizeLines(sizes map[string]int) string {
	labels := make([]string, 0, len(sizes))
	for label, qty := range sizes {
		if qty > 0 {
			labels = append(labels, label)
		}
	}
	if len(labels) == 0 {
		return ""
	}
	sort.Strings(labels)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📏 %s:\n", helpers.EscapeMarkdownV2(translation.Translate("Available sizes"))))
	for _, label := range labels {
		sb.WriteString(fmt.Sprintf("  • `%s`: %d\n", helpers.EscapeMarkdownV2(label), sizes[label]))
	}
	return sb.String()
}

// SendStartup announces the bot and its tracked categories.
func (n *Notifier) SendStartup(categories []types.Category) {
	names := make([]string, 0, len(categories))
	for _, cat := range categories {
		names = append(names, cat.Name)
	}

	text := fmt.Sprintf(
		"🤖 *%s*\n\n✅ %s: %s\n🕒 %s",
		helpers.EscapeMarkdownV2(translation.Translate("Stock watch bot started")),
		helpers.EscapeMarkdownV2(translation.Translate("Tracking")),
		helpers.EscapeMarkdownV2(strings.Join(names, ", ")),
		helpers.EscapeMarkdownV2(helpers.FormatTime(time.Now())),
	)
	if err := n.sender.SendMessage(Message{ChatID: n.chatID, Text: text}); err != nil {
		log.Errorf("failed to send startup message: %v", err)
	}
}

// SendShutdown reports final stats before the process exits.
func (n *Notifier) SendShutdown(stats map[string]types.CategoryStats) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🛑 *%s*\n\n", helpers.EscapeMarkdownV2(translation.Translate("Stock watch bot shutting down"))))
	for _, category := range sortedKeys(stats) {
		s := stats[category]
		sb.WriteString(fmt.Sprintf("*%s*: %s %s, %d %s, %d %s\n",
			helpers.EscapeMarkdownV2(category),
			helpers.FormatCountUS(s.TotalProducts, true),
			helpers.EscapeMarkdownV2(translation.Translate("products")),
			s.NewToday,
			helpers.EscapeMarkdownV2(translation.Translate("new today")),
			s.RestocksToday,
			helpers.EscapeMarkdownV2(translation.Translate("restocks today")),
		))
	}
	sb.WriteString(fmt.Sprintf("\n⏰ %s %s",
		helpers.EscapeMarkdownV2(translation.Translate("Started")),
		helpers.EscapeMarkdownV2(humanize.Time(n.startedAt))))

	if err := n.sender.SendMessage(Message{ChatID: n.chatID, Text: sb.String()}); err != nil {
		log.Errorf("failed to send shutdown message: %v", err)
	}
}

// SendSummary posts the periodic per-category digest, with the check
// history chart attached when one could be rendered.
func (n *Notifier) SendSummary(category string, stats types.CategoryStats, chartPNG []byte) {
	text := fmt.Sprintf(
		"📋 *%s: %s*\n\n📦 %s: %s\n🆕 %s: %d\n🔄 %s: %d\n\n🤖 %s %s",
		helpers.EscapeMarkdownV2(category),
		helpers.EscapeMarkdownV2(translation.Translate("summary")),
		helpers.EscapeMarkdownV2(translation.Translate("Tracked products")),
		helpers.FormatCountUS(stats.TotalProducts, true),
		helpers.EscapeMarkdownV2(translation.Translate("New today")),
		stats.NewToday,
		helpers.EscapeMarkdownV2(translation.Translate("Restocks today")),
		stats.RestocksToday,
		helpers.EscapeMarkdownV2(translation.Translate("Bot started")),
		helpers.EscapeMarkdownV2(humanize.Time(n.startedAt)),
	)

	var err error
	if len(chartPNG) > 0 {
		err = n.sender.SendPhotoBytes(n.chatID, "summary.png", chartPNG, text)
	} else {
		err = n.sender.SendMessage(Message{ChatID: n.chatID, Text: text})
	}
	if err != nil {
		log.Errorf("failed to send summary for %s: %v", category, err)
	}
}

// SendErrorAlert warns the operator after repeated scrape failures.
func (n *Notifier) SendErrorAlert(category string, cause error) {
	text := fmt.Sprintf(
		"⚠️ *%s*\n\n*%s*: %s\n`%s`",
		helpers.EscapeMarkdownV2(translation.Translate("Repeated scrape failures")),
		helpers.EscapeMarkdownV2(translation.Translate("Category")),
		helpers.EscapeMarkdownV2(category),
		helpers.EscapeMarkdownV2(cause.Error()),
	)
	if err := n.sender.SendMessage(Message{ChatID: n.chatID, Text: text}); err != nil {
		log.Errorf("failed to send error alert: %v", err)
	}
}

func sortedKeys(stats map[string]types.CategoryStats) []string {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

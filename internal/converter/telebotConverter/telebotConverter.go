package telebotConverter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KotFed0t/copytrade_backoffice/internal/model"
)

var actionTitles = map[string]string{
	model.ActionPurchaseCreated:  "🆕 New copytrade purchase awaiting review",
	model.ActionPurchaseApproved: "✅ Copytrade purchase approved",
	model.ActionPurchaseRejected: "❌ Copytrade purchase rejected",
}

func NotificationMessage(notification model.Notification) string {
	var sb strings.Builder

	title, ok := actionTitles[notification.Action]
	if !ok {
		title = notification.Action
	}

	sb.WriteString(title)
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("👤 User: %d\n", notification.UserID))

	keys := make([]string, 0, len(notification.Metadata))
	for k := range notification.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("   ▸ %s: %v\n", k, notification.Metadata[k]))
	}

	return sb.String()
}

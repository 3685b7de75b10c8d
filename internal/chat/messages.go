package chat

import (
	"fmt"
	"strings"
)

// Client-facing texts. Every message sent to a client ends with a newline.
const (
	msgBadLogin     = "Неправильный логин\n"
	msgOnlineHeader = "Сейчас онлайн:\n"
	msgNobodyOnline = "Пока никто, кроме вас, не вошел в чат.\n"
	fmtNameTaken    = "Логин %s занят, попробуйте другой\n"
	fmtWelcome      = "Привет, %s!\n"
	fmtJoin         = "Встречайте нового пользователя: %s\n"
	fmtChat         = "%s: %s\n"
	fmtDeparture    = "%s покинул чат\n"
)

func nameTakenMessage(name string) string { return fmt.Sprintf(fmtNameTaken, name) }

func welcomeMessage(login string) string { return fmt.Sprintf(fmtWelcome, login) }

func joinMessage(login string) string { return fmt.Sprintf(fmtJoin, login) }

func departureMessage(login string) string { return fmt.Sprintf(fmtDeparture, login) }

// FormatChat renders a chat line the way it is broadcast and stored in history.
func FormatChat(login, content string) string {
	return fmt.Sprintf(fmtChat, login, content)
}

func onlineMessage(logins []string) string {
	var b strings.Builder
	b.WriteString(msgOnlineHeader)
	b.WriteString(strings.Join(logins, "\n"))
	b.WriteByte('\n')
	return b.String()
}

package adapter

import (
	tele "gopkg.in/telebot.v4"

	kit "tgcast/internal/transport"
)

// sendOptions translates transport options. Inline buttons win over a
// reply keyboard; the platform accepts one markup per message.
func sendOptions(opt *kit.SendOptions) *tele.SendOptions {
	so := &tele.SendOptions{}
	if opt == nil {
		return so
	}
	so.ParseMode = tele.ParseMode(opt.ParseMode)
	so.DisableWebPagePreview = opt.DisablePreview
	switch {
	case len(opt.InlineButtons) > 0:
		so.ReplyMarkup = inlineMarkup(opt.InlineButtons)
	case len(opt.ReplyKeyboard) > 0:
		so.ReplyMarkup = replyKeyboard(opt.ReplyKeyboard)
	}
	return so
}

// inlineMarkup renders one URL button per row.
func inlineMarkup(buttons []kit.LinkButton) *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(buttons))
	for _, b := range buttons {
		if b.Text == "" || b.URL == "" {
			continue
		}
		rows = append(rows, rm.Row(rm.URL(b.Text, b.URL)))
	}
	rm.Inline(rows...)
	return rm
}

func replyKeyboard(layout [][]string) *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{ResizeKeyboard: true}
	rows := make([]tele.Row, 0, len(layout))
	for _, line := range layout {
		btns := make([]tele.Btn, 0, len(line))
		for _, text := range line {
			btns = append(btns, rm.Text(text))
		}
		if len(btns) > 0 {
			rows = append(rows, rm.Row(btns...))
		}
	}
	rm.Reply(rows...)
	return rm
}

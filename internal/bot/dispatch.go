// Package bot содержит Telegram-адаптеры магазина: покупательский и админский боты.
package bot

import (
	"context"
	"strings"
)

// callbackHandler обрабатывает одно нажатие inline-кнопки.
// arg — аргумент префиксного действия (например, идентификатор категории).
type callbackHandler func(ctx context.Context, chatID int64, arg string)

// dispatcher сопоставляет callback-данные кнопок с обработчиками.
// Вместо цепочек if/else: точные действия лежат в таблице, действия
// с аргументом задаются закрытым списком префиксов.
type dispatcher struct {
	exact    map[string]callbackHandler
	prefixes []prefixRoute
}

type prefixRoute struct {
	prefix string
	fn     callbackHandler
}

func newDispatcher() *dispatcher {
	return &dispatcher{exact: make(map[string]callbackHandler)}
}

func (d *dispatcher) on(action string, fn callbackHandler) {
	d.exact[action] = fn
}

func (d *dispatcher) onPrefix(prefix string, fn callbackHandler) {
	d.prefixes = append(d.prefixes, prefixRoute{prefix: prefix, fn: fn})
}

// dispatch находит и вызывает обработчик. Возвращает false, если действие неизвестно.
func (d *dispatcher) dispatch(ctx context.Context, chatID int64, data string) bool {
	if fn, ok := d.exact[data]; ok {
		fn(ctx, chatID, "")
		return true
	}
	for _, r := range d.prefixes {
		if strings.HasPrefix(data, r.prefix) {
			r.fn(ctx, chatID, strings.TrimPrefix(data, r.prefix))
			return true
		}
	}
	return false
}

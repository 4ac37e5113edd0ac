package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mmeshcher/orderbot/internal/model"
)

// IntentKind описывает распознанное намерение ответа на зеркальное сообщение.
type IntentKind string

const (
	IntentDone          IntentKind = "done"
	IntentWrong         IntentKind = "wrong"
	IntentCancelRequest IntentKind = "cancel"
	IntentPriceQuote    IntentKind = "price_quote"
	IntentUnrecognized  IntentKind = "unrecognized"
)

// Intent — результат классификации текста ответа. Поля Amount и Currency
// заполнены только для IntentPriceQuote.
type Intent struct {
	Kind     IntentKind
	Amount   int64
	Currency string
}

var priceRe = regexp.MustCompile(`(?i)^(?:price|цена)\s+(\d+)\s*([a-zа-яё]*)\s*$`)

var (
	doneWords   = []string{"done", "готово", "сделано", "выполнено", "+"}
	wrongWords  = []string{"wrong", "неверно", "ошибка", "брак", "-"}
	cancelWords = []string{"cancel", "отмена", "отменить"}
)

// ClassifyReply относит текст ответа к одному из закрытого набора намерений.
func ClassifyReply(text string) Intent {
	trimmed := strings.ToLower(strings.TrimSpace(text))
	if trimmed == "" {
		return Intent{Kind: IntentUnrecognized}
	}

	for _, w := range doneWords {
		if trimmed == w {
			return Intent{Kind: IntentDone}
		}
	}
	for _, w := range wrongWords {
		if trimmed == w {
			return Intent{Kind: IntentWrong}
		}
	}
	for _, w := range cancelWords {
		if trimmed == w {
			return Intent{Kind: IntentCancelRequest}
		}
	}

	if m := priceRe.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
		amount, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			return Intent{
				Kind:     IntentPriceQuote,
				Amount:   amount,
				Currency: strings.ToUpper(m[2]),
			}
		}
	}

	return Intent{Kind: IntentUnrecognized}
}

const (
	callbackPrefix  = "cancel"
	callbackApprove = "approve"
	callbackReject  = "reject"
)

// CancelCallback формирует полезную нагрузку кнопки решения по отмене.
func CancelCallback(decision model.CancelDecision, orderID int64) string {
	action := callbackReject
	if decision == model.CancelDecisionApproved {
		action = callbackApprove
	}
	return callbackPrefix + ":" + action + ":" + strconv.FormatInt(orderID, 10)
}

// ParseCancelCallback разбирает полезную нагрузку кнопки решения по отмене.
// Возвращает false для нагрузок чужого формата.
func ParseCancelCallback(data string) (model.CancelDecision, int64, bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != callbackPrefix {
		return "", 0, false
	}

	orderID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || orderID <= 0 {
		return "", 0, false
	}

	switch parts[1] {
	case callbackApprove:
		return model.CancelDecisionApproved, orderID, true
	case callbackReject:
		return model.CancelDecisionRejected, orderID, true
	}

	return "", 0, false
}

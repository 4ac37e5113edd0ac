// Package parse содержит чистые функции разбора свободного текста заявок
// и классификации ответов участников.
package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mmeshcher/orderbot/internal/model"
)

var (
	emailRe    = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	packQtyRe  = regexp.MustCompile(`(?i)\b(\d+)\s*[x×х]\s*(\d+)\b`)
	packKeyRe  = regexp.MustCompile(`(?i)(?:pack|пакет)\s*[:=]\s*(\d+)`)
	qtyKeyRe   = regexp.MustCompile(`(?i)(?:qty|quantity|кол-?во)\s*[:=]\s*(\d+)`)
	totalKeyRe = regexp.MustCompile(`(?i)(?:total|итого|сумма)\s*[:=]?\s*(\d+)`)
	credKeyRe  = regexp.MustCompile(`(?i)(?:credential|code|код)\s*[:=]\s*(\S+)`)
	ignKeyRe   = regexp.MustCompile(`(?i)(?:ign|nick|ник)\s*[:=]\s*(\S+)`)
)

// OrderRequest извлекает структурированные поля заявки из свободного текста.
// Отсутствующие поля остаются пустыми; обязательность полей проверяет
// вызывающая сторона.
func OrderRequest(text string) model.ParsedOrderRequest {
	var req model.ParsedOrderRequest

	lower := strings.ToLower(text)
	for _, t := range model.KnownOrderTypes {
		if containsWord(lower, t) {
			req.Type = t
			break
		}
	}

	if m := packQtyRe.FindStringSubmatch(text); m != nil {
		req.Pack = parseInt(m[1])
		req.Quantity = parseInt(m[2])
	} else if m := packKeyRe.FindStringSubmatch(text); m != nil {
		req.Pack = parseInt(m[1])
	}

	if req.Quantity == nil {
		if m := qtyKeyRe.FindStringSubmatch(text); m != nil {
			req.Quantity = parseInt(m[1])
		}
	}

	if m := totalKeyRe.FindStringSubmatch(text); m != nil {
		req.Total = parseInt(m[1])
	}

	req.Email = emailRe.FindString(text)

	if m := credKeyRe.FindStringSubmatch(text); m != nil {
		req.Credential = m[1]
	}

	if m := ignKeyRe.FindStringSubmatch(text); m != nil {
		req.IGN = m[1]
	}

	return req
}

func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)

		beforeOK := start == 0 || !isWordByte(text[start-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func parseInt(s string) *int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

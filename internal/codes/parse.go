// Package codes разбирает пакетный ввод кодов администратором.
package codes

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abodcard/storefront/internal/model"
)

// ErrEmptyInput возвращается, когда во вводе нет ни одного кода.
var ErrEmptyInput = errors.New("no codes in input")

// Parse разбирает построчный ввод кодов. Для типа dual каждая строка имеет вид
// "код|серийный номер". Пустые строки пропускаются, дубликаты внутри пачки отклоняются.
func Parse(input string, categoryID string, codeType model.CodeType) ([]model.Code, error) {
	seen := make(map[string]struct{})
	var res []model.Code

	for i, line := range strings.Split(input, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		code := line
		serial := ""
		if codeType == model.CodeTypeDual {
			parts := strings.SplitN(line, "|", 2)
			if len(parts) != 2 {
				return nil, fmt.Errorf("line %d: dual code must be in code|serial form", i+1)
			}
			code = strings.TrimSpace(parts[0])
			serial = strings.TrimSpace(parts[1])
			if code == "" || serial == "" {
				return nil, fmt.Errorf("line %d: empty code or serial", i+1)
			}
		}

		if _, ok := seen[code]; ok {
			return nil, fmt.Errorf("line %d: duplicate code %q", i+1, code)
		}
		seen[code] = struct{}{}

		res = append(res, model.Code{
			CategoryID:   categoryID,
			Code:         code,
			SerialNumber: serial,
			CodeType:     codeType,
		})
	}

	if len(res) == 0 {
		return nil, ErrEmptyInput
	}
	return res, nil
}

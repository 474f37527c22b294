// Package record converts one account to and from its on-disk text form: six
// labelled lines in a fixed order, balance to two decimal places.
package record

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tabung.org/internal/ledger"
)

const (
	labelNumber  = "Account Number"
	labelName    = "Name"
	labelID      = "ID Number"
	labelType    = "Account Type"
	labelPIN     = "PIN"
	labelBalance = "Balance"
)

var fieldOrder = []string{labelNumber, labelName, labelID, labelType, labelPIN, labelBalance}

// DecodeError reports the first field that could not be read. It matches
// ledger.ErrUnreadable so stores can return it as is.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ledger.ErrUnreadable }

var (
	errMissing = errors.New("line missing")
	errEmpty   = errors.New("empty value")
)

// Encode renders acc as its record text.
func Encode(acc ledger.Account) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s: %s\n", labelNumber, acc.Number)
	fmt.Fprintf(&b, "%s: %s\n", labelName, acc.Name)
	fmt.Fprintf(&b, "%s: %s\n", labelID, acc.IDNumber)
	fmt.Fprintf(&b, "%s: %s\n", labelType, acc.Type)
	fmt.Fprintf(&b, "%s: %s\n", labelPIN, acc.PIN)
	fmt.Fprintf(&b, "%s: %s\n", labelBalance, acc.Balance.StringFixed(2))
	return b.Bytes()
}

// Decode parses record text. Every labelled line must be present, in order,
// with a usable value.
func Decode(data []byte) (ledger.Account, error) {
	values := make([]string, 0, len(fieldOrder))
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if len(values) == len(fieldOrder) {
			if strings.TrimSpace(line) != "" {
				return ledger.Account{}, &DecodeError{Field: "trailer", Err: fmt.Errorf("unexpected line %q", line)}
			}
			continue
		}
		label := fieldOrder[len(values)]
		if line == label+":" {
			return ledger.Account{}, &DecodeError{Field: label, Err: errEmpty}
		}
		// The value is everything after "Label: ", spaces included, so that
		// Decode(Encode(acc)) returns acc unchanged.
		v, ok := strings.CutPrefix(line, label+": ")
		if !ok {
			return ledger.Account{}, &DecodeError{Field: label, Err: errMissing}
		}
		if strings.TrimSpace(v) == "" {
			return ledger.Account{}, &DecodeError{Field: label, Err: errEmpty}
		}
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return ledger.Account{}, &DecodeError{Field: "record", Err: err}
	}
	if len(values) < len(fieldOrder) {
		return ledger.Account{}, &DecodeError{Field: fieldOrder[len(values)], Err: errMissing}
	}

	typ, err := ledger.ParseAccountType(values[3])
	if err != nil {
		return ledger.Account{}, &DecodeError{Field: labelType, Err: err}
	}
	bal, err := decimal.NewFromString(values[5])
	if err != nil {
		return ledger.Account{}, &DecodeError{Field: labelBalance, Err: err}
	}
	if bal.IsNegative() {
		return ledger.Account{}, &DecodeError{Field: labelBalance, Err: errors.New("negative balance")}
	}

	return ledger.Account{
		Number:   values[0],
		Name:     values[1],
		IDNumber: values[2],
		Type:     typ,
		PIN:      values[4],
		Balance:  bal,
	}, nil
}

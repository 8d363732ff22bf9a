package importer

import (
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"

	"tally/internal/core"
)

// Categories given to statement lines, which carry no category of their own.
const (
	OFXExpenseCategory = "Imported"
	OFXIncomeCategory  = "Imported income"
)

var (
	severityRe = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	openTagRe  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// cleanOFX fixes formatting slips common in bank exports.
func cleanOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRe.ReplaceAllStringFunc(content, strings.ToUpper)
	return openTagRe.ReplaceAllString(content, "$1>")
}

// readOFX renders bank and credit card statement lines in the import layout
// so they go through the same validation as spreadsheets.
func readOFX(r io.Reader) ([][]string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read ofx: %w", err)
	}
	resp, err := ofxgo.ParseResponse(strings.NewReader(cleanOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("parse ofx: %w", err)
	}

	records := [][]string{Columns}
	var statements int
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			statements++
			for _, tx := range stmt.BankTranList.Transactions {
				records = append(records, ofxRecord(tx))
			}
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			statements++
			for _, tx := range stmt.BankTranList.Transactions {
				records = append(records, ofxRecord(tx))
			}
		}
	}

	slog.Debug("Parsed OFX statement", "statements", statements, "transactions", len(records)-1)
	return records, nil
}

// ofxRecord maps a statement line: debits are negative and become expenses.
func ofxRecord(tx ofxgo.Transaction) []string {
	typ, category := "expense", OFXExpenseCategory
	if tx.TrnAmt.Sign() > 0 {
		typ, category = "income", OFXIncomeCategory
	}
	amount := new(big.Rat).Abs(&tx.TrnAmt.Rat).FloatString(2)
	return []string{
		tx.DtPosted.Format("2006-01-02"),
		typ,
		category,
		amount,
		ofxDescription(tx),
	}
}

func ofxDescription(tx ofxgo.Transaction) string {
	var desc string
	switch {
	case tx.Payee != nil && tx.Payee.Name != "":
		desc = string(tx.Payee.Name)
	case tx.Name != "":
		desc = string(tx.Name)
	default:
		desc = string(tx.Memo)
	}
	return core.ClipDescription(strings.Join(strings.Fields(desc), " "))
}

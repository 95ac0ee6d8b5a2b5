package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Transaction type discriminators as stored in the transactions table and in
// the JSON envelope.
const (
	TxTypeBuy         = "buy"
	TxTypeSell        = "sell"
	TxTypeDeposit     = "deposit"
	TxTypeLiquidation = "liquidation"
)

// Transaction is one immutable entry of a ledger's audit trail. The four
// concrete variants each carry only the fields that make sense for their
// kind, so a "buy" without a symbol is unrepresentable.
type Transaction interface {
	// Type returns the discriminator string for this variant.
	Type() string
	// Time returns when the transaction was recorded.
	Time() time.Time
}

// BuyTransaction records a share purchase. Quantity and Price are the raw
// trade inputs, not rounded.
type BuyTransaction struct {
	Symbol     string    `json:"symbol"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
	Date       time.Time `json:"date"`
}

func (t BuyTransaction) Type() string    { return TxTypeBuy }
func (t BuyTransaction) Time() time.Time { return t.Date }

// SellTransaction records a share sale.
type SellTransaction struct {
	Symbol     string    `json:"symbol"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
	Date       time.Time `json:"date"`
}

func (t SellTransaction) Type() string    { return TxTypeSell }
func (t SellTransaction) Time() time.Time { return t.Date }

// DepositTransaction records an external cash injection.
type DepositTransaction struct {
	Amount float64   `json:"amount"`
	Date   time.Time `json:"date"`
}

func (t DepositTransaction) Type() string    { return TxTypeDeposit }
func (t DepositTransaction) Time() time.Time { return t.Date }

// LiquidationTransaction records a batched dust sweep: all swept symbols and
// the total cash credited in one entry.
type LiquidationTransaction struct {
	Amount  float64   `json:"amount"`
	Symbols []string  `json:"symbols"`
	Date    time.Time `json:"date"`
}

func (t LiquidationTransaction) Type() string    { return TxTypeLiquidation }
func (t LiquidationTransaction) Time() time.Time { return t.Date }

// txEnvelope is the flat JSON shape used for storage and API responses. The
// Type field decides which of the optional fields are meaningful.
type txEnvelope struct {
	Type       string    `json:"type"`
	Symbol     string    `json:"symbol,omitempty"`
	Quantity   float64   `json:"quantity,omitempty"`
	Price      float64   `json:"price,omitempty"`
	Commission float64   `json:"commission,omitempty"`
	Amount     float64   `json:"amount,omitempty"`
	Symbols    []string  `json:"symbols,omitempty"`
	Date       time.Time `json:"date"`
}

// MarshalTransaction encodes a transaction variant into its flat JSON
// envelope.
func MarshalTransaction(tx Transaction) ([]byte, error) {
	var env txEnvelope
	switch t := tx.(type) {
	case BuyTransaction:
		env = txEnvelope{Type: TxTypeBuy, Symbol: t.Symbol, Quantity: t.Quantity, Price: t.Price, Commission: t.Commission, Date: t.Date}
	case SellTransaction:
		env = txEnvelope{Type: TxTypeSell, Symbol: t.Symbol, Quantity: t.Quantity, Price: t.Price, Commission: t.Commission, Date: t.Date}
	case DepositTransaction:
		env = txEnvelope{Type: TxTypeDeposit, Amount: t.Amount, Date: t.Date}
	case LiquidationTransaction:
		env = txEnvelope{Type: TxTypeLiquidation, Amount: t.Amount, Symbols: t.Symbols, Date: t.Date}
	default:
		return nil, fmt.Errorf("unknown transaction variant %T", tx)
	}
	return json.Marshal(env)
}

// UnmarshalTransaction decodes a flat JSON envelope back into the matching
// variant.
func UnmarshalTransaction(data []byte) (Transaction, error) {
	var env txEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding transaction envelope: %w", err)
	}
	switch env.Type {
	case TxTypeBuy:
		return BuyTransaction{Symbol: env.Symbol, Quantity: env.Quantity, Price: env.Price, Commission: env.Commission, Date: env.Date}, nil
	case TxTypeSell:
		return SellTransaction{Symbol: env.Symbol, Quantity: env.Quantity, Price: env.Price, Commission: env.Commission, Date: env.Date}, nil
	case TxTypeDeposit:
		return DepositTransaction{Amount: env.Amount, Date: env.Date}, nil
	case TxTypeLiquidation:
		return LiquidationTransaction{Amount: env.Amount, Symbols: env.Symbols, Date: env.Date}, nil
	default:
		return nil, fmt.Errorf("unknown transaction type %q", env.Type)
	}
}

// MarshalTransactions encodes a full transaction log for an API response.
func MarshalTransactions(txs []Transaction) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(txs))
	for _, tx := range txs {
		raw, err := MarshalTransaction(tx)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

package ordering

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/sazar-neudorff/productmanager/internal/domain/catalog"
	"github.com/sazar-neudorff/productmanager/internal/domain/shared"
	"github.com/sazar-neudorff/productmanager/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shippingFee = valueobject.NewMoneyEUR(decimal.RequireFromString("2.50"))

func ferramol() catalog.Option {
	return catalog.Option{
		ID:        "ferramol",
		Title:     "Ferramol Schneckenkorn",
		SKU:       "ND-4100",
		EAN:       "400524000410",
		UnitPrice: decimal.RequireFromString("12.99"),
	}
}

func readyDraft(t *testing.T) *OrderDraft {
	t.Helper()
	d := NewOrderDraft(shippingFee)
	require.NoError(t, d.Select(ferramol()))
	d.Delivery = completeForm()
	return d
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"3", 3},
		{" 12 ", 12},
		{"0", 1},
		{"-4", 1},
		{"", 1},
		{"abc", 1},
		{"2.5", 1},
		{"99999999999999999999", 1},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseQuantity(tt.raw))
		})
	}
}

func TestLineItem_Pricing(t *testing.T) {
	d := NewOrderDraft(shippingFee)
	require.NoError(t, d.Select(ferramol()))

	assert.Equal(t, 1, d.LineItem.Quantity)
	assert.Equal(t, "12.99", d.Subtotal().StringFixed(2))
	assert.Equal(t, "15.49", d.Total().StringFixed(2))

	q, err := d.SetQuantity("3")
	require.NoError(t, err)
	assert.Equal(t, 3, q)
	assert.Equal(t, "38.97", d.Subtotal().StringFixed(2))

	require.NoError(t, d.Select(catalog.Option{ID: "other", Title: "Other", UnitPrice: decimal.RequireFromString("9.49")}))
	_, err = d.SetQuantity("1")
	require.NoError(t, err)
	assert.Equal(t, "9.49", d.Subtotal().StringFixed(2))
}

func TestLineItem_RoundsHalfUp(t *testing.T) {
	item := NewLineItem(catalog.Option{ID: "x", Title: "x", UnitPrice: decimal.RequireFromString("0.125")})
	assert.Equal(t, "0.13", item.Subtotal().StringFixed(2))
}

func TestLineItem_CopiesOption(t *testing.T) {
	opt := ferramol()
	d := NewOrderDraft(shippingFee)
	require.NoError(t, d.Select(opt))

	opt.Title = "renamed upstream"
	assert.Equal(t, "Ferramol Schneckenkorn", d.LineItem.Option.Title)
}

func TestOrderDraft_NoSelection(t *testing.T) {
	d := NewOrderDraft(shippingFee)

	assert.True(t, d.Total().IsZero())
	_, err := d.SetQuantity("2")
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestOrderDraft_SubmitGate(t *testing.T) {
	t.Run("blocks and reports every failing field", func(t *testing.T) {
		d := readyDraft(t)
		d.Delivery.Draft.City = ""
		d.Delivery.Draft.Email = "not-an-email"

		sub, result, err := d.BeginSubmit()

		require.NoError(t, err)
		assert.Nil(t, sub)
		assert.Equal(t, StateEditing, d.State)
		assert.Len(t, result.Errors, 2)
		assert.Equal(t, FieldCity, result.Errors[0].Field)
		assert.Equal(t, FieldEmail, result.Errors[1].Field)
		assert.Equal(t, AddressDelivery, result.Errors[0].Address)
	})

	t.Run("requires a product", func(t *testing.T) {
		d := NewOrderDraft(shippingFee)
		d.Delivery = completeForm()

		_, result, err := d.BeginSubmit()
		require.NoError(t, err)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, FieldProduct, result.Errors[0].Field)
	})

	t.Run("validates separate billing address", func(t *testing.T) {
		d := readyDraft(t)
		require.NoError(t, d.SetBillingSameAsDelivery(false))

		_, result, err := d.BeginSubmit()
		require.NoError(t, err)
		require.False(t, result.Valid())
		for _, e := range result.Errors {
			assert.Equal(t, AddressBilling, e.Address)
		}
	})
}

func TestOrderDraft_SubmitLifecycle(t *testing.T) {
	t.Run("success moves to submitted exactly once", func(t *testing.T) {
		d := readyDraft(t)
		require.NoError(t, d.SetNotes("  bitte vor 12 Uhr liefern "))

		sub, result, err := d.BeginSubmit()
		require.NoError(t, err)
		require.True(t, result.Valid())
		require.NotNil(t, sub)
		assert.Equal(t, StateSubmitting, d.State)
		assert.Equal(t, SubmissionLine{ProductID: "ferramol", Quantity: 1}, sub.LineItem)
		assert.Equal(t, "12345", sub.Address.PostalCode)
		assert.Equal(t, CountryDomestic, sub.Address.Country)
		assert.Equal(t, "bitte vor 12 Uhr liefern", sub.Notes)
		assert.Nil(t, sub.BillingAddress)

		_, _, err = d.BeginSubmit()
		assert.ErrorIs(t, err, ErrSubmitInFlight)
		assert.ErrorIs(t, d.SetNotes("x"), shared.ErrInvalidState)

		require.NoError(t, d.CompleteSubmit(Receipt{OrderNumber: "A-1"}))
		assert.Equal(t, StateSubmitted, d.State)
		assert.Equal(t, "A-1", d.OrderNumber)

		_, _, err = d.BeginSubmit()
		assert.ErrorIs(t, err, ErrAlreadySubmitted)
		assert.Error(t, d.Select(ferramol()))
	})

	t.Run("rejection keeps the draft editable", func(t *testing.T) {
		d := readyDraft(t)

		_, _, err := d.BeginSubmit()
		require.NoError(t, err)
		require.NoError(t, d.FailSubmit(&RejectionError{Code: "OUT_OF_STOCK", Reason: "Artikel nicht lieferbar"}))

		assert.Equal(t, StateRejected, d.State)
		assert.Equal(t, "Artikel nicht lieferbar", d.Rejection)
		assert.Equal(t, "Emmerthal", d.Delivery.Draft.City)

		_, err = d.SetQuantity("2")
		require.NoError(t, err)
		assert.Equal(t, StateEditing, d.State)

		sub, _, err := d.BeginSubmit()
		require.NoError(t, err)
		assert.Equal(t, 2, sub.LineItem.Quantity)
	})

	t.Run("complete without begin is invalid", func(t *testing.T) {
		d := readyDraft(t)
		assert.ErrorIs(t, d.CompleteSubmit(Receipt{}), shared.ErrInvalidState)
		assert.ErrorIs(t, d.FailSubmit(errors.New("x")), shared.ErrInvalidState)
	})
}

func TestRejectionError(t *testing.T) {
	err := error(&RejectionError{Code: "BLOCKED", Reason: "Kunde gesperrt"})

	assert.ErrorIs(t, err, shared.ErrSubmissionRejected)
	assert.Equal(t, "Kunde gesperrt", RejectionReason(err))
	assert.Equal(t, "timeout", RejectionReason(errors.New("timeout")))
}

func TestSavedDraft_RoundTrip(t *testing.T) {
	d := readyDraft(t)
	_, err := d.SetQuantity("4")
	require.NoError(t, err)
	require.NoError(t, d.SetBillingSameAsDelivery(false))
	d.Billing.CommitField(FieldPostalCode, "1010")
	require.NoError(t, d.SetNotes("Rampe 2"))

	id := uuid.New()
	snap := Snapshot(id, "user-1", d)
	assert.Equal(t, "ferramol", snap.ProductID)
	require.NotNil(t, snap.BillingAddress)
	assert.Equal(t, CountryNeighboring, snap.BillingAddress.Country)

	restored := NewOrderDraft(shippingFee)
	snap.Restore(restored)

	assert.Equal(t, 4, restored.LineItem.Quantity)
	assert.Equal(t, "51.96", restored.Subtotal().StringFixed(2))
	assert.False(t, restored.BillingSameAsDelivery)
	assert.Equal(t, "Rampe 2", restored.Notes)
	assert.Equal(t, FieldUntouched, restored.Delivery.State(FieldCity).Status)
	assert.Equal(t, "Emmerthal", restored.Delivery.Draft.City)
}

func TestAddressDraft_ScanValue(t *testing.T) {
	a := NewAddressDraft().With(FieldCity, "Hameln")
	v, err := a.Value()
	require.NoError(t, err)

	var back AddressDraft
	require.NoError(t, back.Scan(v))
	assert.Equal(t, a, back)

	require.NoError(t, back.Scan(nil))
	assert.Equal(t, CountryDomestic, back.Country)
}

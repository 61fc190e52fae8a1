package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-storefront-checkout.git/internal/money"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// GetProducts resolves the given ids against the products table. Unknown ids
// are simply absent from the result; the caller decides what that means.
func (r *Repo) GetProducts(ctx context.Context, ids []string) (map[string]Product, error) {
	if len(ids) == 0 {
		return map[string]Product{}, nil
	}
	args := make([]any, 0, len(ids))
	params := ""
	for i, id := range ids {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	rows, err := r.DB.Query(ctx, `SELECT id, name, price_cents, stock, image_url FROM products WHERE id IN (`+params+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.ImageURL); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// CreateOrder inserts the order and its item snapshots in one transaction.
// The order must be durable before any processor call references it.
func (r *Repo) CreateOrder(ctx context.Context, o Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, email, user_name, status,
		                   subtotal_cents, gst_cents, pst_cents, total_tax_cents, total_cents,
		                   session_id, payment_intent_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,0,0,0,0,'','',$7)
	`, o.ID, o.UserID, o.Email, o.UserName, string(o.Status), o.SubtotalCents, o.CreatedAt)
	if err != nil {
		return err
	}

	for _, it := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, product_name, qty, unit_price_cents)
			VALUES ($1,$2,$3,$4,$5)`,
			o.ID, it.ProductID, it.ProductName, it.Qty, it.UnitPriceCents,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// SetSessionID links the processor session to the order. Best effort at the
// call site: a failure leaves the order pending without a session, never
// rolls the order back.
func (r *Repo) SetSessionID(ctx context.Context, orderID, sessionID string) error {
	_, err := r.DB.Exec(ctx, `UPDATE orders SET session_id=$2 WHERE id=$1`, orderID, sessionID)
	return err
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, email, user_name, status,
		       subtotal_cents, gst_cents, pst_cents, total_tax_cents, total_cents,
		       session_id, payment_intent_id, created_at, paid_at
		FROM orders WHERE id=$1`, orderID).
		Scan(&o.ID, &o.UserID, &o.Email, &o.UserName, &o.Status,
			&o.SubtotalCents, &o.GSTCents, &o.PSTCents, &o.TotalTaxCents, &o.TotalCents,
			&o.SessionID, &o.PaymentIntentID, &o.CreatedAt, &o.PaidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT product_id, product_name, qty, unit_price_cents
		FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.Qty, &it.UnitPriceCents); err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func (r *Repo) GetOrderStatus(ctx context.Context, orderID string) (Status, error) {
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", err
	}
	return Status(s), nil
}

type MarkPaidInput struct {
	OrderID         string
	TotalTaxCents   money.Cents
	TotalCents      money.Cents
	PaymentIntentID string
	PaidAt          time.Time
}

// MarkPaid applies the whole paid transition as one transaction: flip
// PENDING->PAID with final totals, then decrement stock per item with the
// store's atomic arithmetic (never read-modify-write). The status predicate
// doubles as the replay guard: a redelivered event matches zero rows, nothing
// is decremented twice, and (false, nil) tells the caller to ack as a no-op.
func (r *Repo) MarkPaid(ctx context.Context, in MarkPaidInput) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders
		SET status=$2, total_tax_cents=$3, total_cents=$4, payment_intent_id=$5, paid_at=$6
		WHERE id=$1 AND status=$7
	`, in.OrderID, string(StatusPaid), in.TotalTaxCents, in.TotalCents, in.PaymentIntentID, in.PaidAt, string(StatusPending))
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 0 {
		return false, nil
	}

	rows, err := tx.Query(ctx, `SELECT product_id, qty FROM order_items WHERE order_id=$1`, in.OrderID)
	if err != nil {
		return false, err
	}
	type rec struct {
		pid string
		qty int
	}
	var recs []rec
	for rows.Next() {
		var x rec
		if err := rows.Scan(&x.pid, &x.qty); err != nil {
			rows.Close()
			return false, err
		}
		recs = append(recs, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, err
	}

	for _, x := range recs {
		// stock IS NULL berarti stok tidak di-track, skip.
		if _, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock - $2 WHERE id=$1 AND stock IS NOT NULL
		`, x.pid, x.qty); err != nil {
			return false, err
		}
	}
	return true, tx.Commit(ctx)
}

package registry

import (
	"context"

	"rasapos/backend/internal/domain"
	"rasapos/backend/internal/split"
)

// OpenSplit starts a split session over a copy of the active cart, replacing
// any previous session.
func (r *Registry) OpenSplit() (split.View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, err := r.activeOrder()
	if err != nil {
		return split.View{}, err
	}
	if len(order.Cart) == 0 {
		return split.View{}, ErrEmptyCart
	}
	r.split = &splitSession{key: order.Key(), bill: split.New(order.Cart, r.opts.MaxSplits)}
	return r.split.bill.View(), nil
}

func (r *Registry) AddSplit() (split.Bucket, split.View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.split == nil {
		return split.Main, split.View{}, ErrSplitNotOpen
	}
	bucket, err := r.split.bill.AddSplit()
	if err != nil {
		return split.Main, split.View{}, err
	}
	return bucket, r.split.bill.View(), nil
}

func (r *Registry) MoveSplitItem(productID string, from split.Bucket, to split.Bucket) (split.View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.split == nil {
		return split.View{}, ErrSplitNotOpen
	}
	if err := r.split.bill.Move(productID, from, to); err != nil {
		return split.View{}, err
	}
	return r.split.bill.View(), nil
}

// PaySplit pays one bucket of the split session against the live order and
// empties the bucket. The session ends once every bucket is paid.
func (r *Registry) PaySplit(ctx context.Context, bucket split.Bucket, in PaymentInput) (*domain.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.split == nil {
		return nil, ErrSplitNotOpen
	}
	order, err := r.activeOrder()
	if err != nil {
		return nil, err
	}
	session := r.split
	if session.key != order.Key() {
		r.split = nil
		return nil, ErrSplitNotOpen
	}

	items, err := session.bill.Items(bucket)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	in.Lines = make([]PaymentLine, 0, len(items))
	for _, item := range items {
		in.Lines = append(in.Lines, PaymentLine{ProductID: item.ID, Quantity: item.Quantity})
	}

	sale, err := r.commit(ctx, order, in)
	if err != nil {
		return nil, err
	}

	// commit clears the session when the order is fully paid.
	if r.split == session {
		if err := session.bill.Empty(bucket); err == nil && session.bill.IsEmpty() {
			r.split = nil
		}
	}
	return sale, nil
}

func (r *Registry) CloseSplit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.split = nil
}

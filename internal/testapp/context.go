package testapp

import "context"

func withAccount(ctx context.Context, a Account) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func accountFrom(ctx context.Context) Account {
	a, _ := ctx.Value(ctxKey{}).(Account)
	return a
}

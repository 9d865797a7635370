package appctx

import "context"

// ContextKey is the shared type for all context keys in this codebase.
// Keeping it in a tiny package avoids import cycles (config <-> utils).
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeyToken          = ContextKey("Token")
	ContextKeyUserId         = ContextKey("UserId")
	ContextKeyOrganisationId = ContextKey("OrganisationId")
	ContextKeyLanguage       = ContextKey("Language")
	ContextKeyCorrelationId  = ContextKey("CorrelationId")
	ContextKeySession        = ContextKey("Session")

	// ContextKeyTx carries the open *gorm.DB transaction of the request.
	ContextKeyTx = ContextKey("Tx")

	// ContextKeySkipRealm disables the realm plugin for the statement.
	// Used by writes that only touch realm_entity.
	ContextKeySkipRealm = ContextKey("SkipRealm")
)

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func GetBool(ctx context.Context, key ContextKey) (bool, bool) {
	v, ok := ctx.Value(key).(bool)
	return v, ok
}

func GetInt(ctx context.Context, key ContextKey) (int, bool) {
	v, ok := ctx.Value(key).(int)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

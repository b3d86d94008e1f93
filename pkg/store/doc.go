// Package store defines the credential and token store interfaces consumed
// by the authentication strategies, together with the sentinel errors all
// implementations map their backend failures to.
//
// Implementations must be safe for concurrent use; the resolver performs
// read-only lookups from many requests at once and takes no locks of its own.
package store

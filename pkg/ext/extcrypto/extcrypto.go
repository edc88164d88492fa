// Package extcrypto provides identifier and hashing functions.
//
// Security note: MD5 and SHA-1 are provided for compatibility and
// fingerprinting only and should NOT be used for cryptographic security
// purposes.
package extcrypto

import (
	"context"
	"crypto/hmac"
	"crypto/md5" //nolint:gosec // intentional: provided for non-security fingerprinting
	"crypto/sha1" //nolint:gosec // intentional
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/google/uuid"

	"github.com/sandrolain/sonata/pkg/functions"
	"github.com/sandrolain/sonata/pkg/types"
)

// All returns all cryptographic function definitions.
func All() []functions.Definition {
	return []functions.Definition{
		UUID(),
		Hash(),
		HMAC(),
	}
}

// UUID returns the definition for $uuid(). It generates a random version 4
// UUID string.
func UUID() functions.Definition {
	return functions.Definition{
		Name:      "uuid",
		Signature: "<:s>",
		Fn: func(context.Context, ...types.Value) (types.Value, error) {
			id, err := uuid.NewRandom()
			if err != nil {
				return nil, fmt.Errorf("$uuid: %w", err)
			}
			return types.String(id.String()), nil
		},
	}
}

// Hash returns the definition for $hash(str [, algorithm]).
// Supported algorithms: "md5", "sha1", "sha256" (default), "sha384",
// "sha512". Returns a lowercase hex-encoded digest.
func Hash() functions.Definition {
	return functions.Definition{
		Name:      "hash",
		Signature: "<s-s?:s>",
		Fn: func(_ context.Context, args ...types.Value) (types.Value, error) {
			str, ok := args[0].(types.String)
			if !ok {
				return nil, nil
			}
			newHash, err := hasher(args[1])
			if err != nil {
				return nil, fmt.Errorf("$hash: %w", err)
			}
			h := newHash()
			h.Write([]byte(str))
			return types.String(hex.EncodeToString(h.Sum(nil))), nil
		},
	}
}

// HMAC returns the definition for $hmac(str, key [, algorithm]).
func HMAC() functions.Definition {
	return functions.Definition{
		Name:      "hmac",
		Signature: "<s-ss?:s>",
		Fn: func(_ context.Context, args ...types.Value) (types.Value, error) {
			str, ok := args[0].(types.String)
			if !ok {
				return nil, nil
			}
			key, _ := args[1].(types.String)
			newHash, err := hasher(args[2])
			if err != nil {
				return nil, fmt.Errorf("$hmac: %w", err)
			}
			mac := hmac.New(newHash, []byte(key))
			mac.Write([]byte(str))
			return types.String(hex.EncodeToString(mac.Sum(nil))), nil
		},
	}
}

func hasher(algorithm types.Value) (func() hash.Hash, error) {
	name := "sha256"
	if s, ok := algorithm.(types.String); ok {
		name = strings.ToLower(string(s))
	}
	switch name {
	case "md5":
		return md5.New, nil //nolint:gosec
	case "sha1":
		return sha1.New, nil //nolint:gosec
	case "sha256":
		return sha256.New, nil
	case "sha384":
		return sha512.New384, nil
	case "sha512":
		return sha512.New, nil
	}
	return nil, fmt.Errorf("unsupported algorithm %q; use md5, sha1, sha256, sha384, or sha512", name)
}

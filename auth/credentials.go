package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/joshuarp/controller-sdk/store"
)

var nowFunc = time.Now

// credentialRecordID keys the single saved-credentials record per table.
const credentialRecordID = "credentials"

// Credentials are the login inputs a host may persist so the SDK can
// re-authenticate after a restart. They are stored encoded, not encrypted;
// hosts needing stronger protection should keep StoreCredentials off and
// supply credentials themselves.
type Credentials struct {
	Username string
	Password string
}

// SaveCredentials persists the credentials into the named store table.
func SaveCredentials(ctx context.Context, st store.Store, table string, creds Credentials) error {
	fields := map[string]interface{}{
		"username": base64.StdEncoding.EncodeToString([]byte(creds.Username)),
		"password": base64.StdEncoding.EncodeToString([]byte(creds.Password)),
		"savedAt":  nowFunc().Unix(),
	}
	if err := st.Create(ctx, table, credentialRecordID, fields); err != nil {
		return fmt.Errorf("auth: failed to save credentials: %w", err)
	}
	return nil
}

// LoadCredentials reads previously saved credentials. The bool result is
// false when none are stored.
func LoadCredentials(ctx context.Context, st store.Store, table string) (Credentials, bool, error) {
	rec, err := st.Get(ctx, table, credentialRecordID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Credentials{}, false, nil
		}
		return Credentials{}, false, fmt.Errorf("auth: failed to load credentials: %w", err)
	}

	username, err := decodeField(rec.Fields, "username")
	if err != nil {
		return Credentials{}, false, err
	}
	password, err := decodeField(rec.Fields, "password")
	if err != nil {
		return Credentials{}, false, err
	}
	return Credentials{Username: username, Password: password}, true, nil
}

// ClearCredentials removes any saved credentials.
func ClearCredentials(ctx context.Context, st store.Store, table string) error {
	if err := st.Remove(ctx, table, credentialRecordID); err != nil {
		return fmt.Errorf("auth: failed to clear credentials: %w", err)
	}
	return nil
}

func decodeField(fields map[string]interface{}, name string) (string, error) {
	encoded, _ := fields[name].(string)
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("auth: stored %s is not valid base64: %w", name, err)
	}
	return string(raw), nil
}

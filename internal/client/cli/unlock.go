package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/draftkeeper/internal/common"
	"github.com/dmitrijs2005/draftkeeper/internal/cryptox"
	"github.com/google/uuid"
)

// Reserved KV keys. Drafts live under session.StorageKeyPrefix.
const (
	keyDeviceID = "meta:device_id"
	keySalt     = "meta:salt"
	keyVerifier = "meta:verifier"

	verifierText = "draftkeeper"
	saltSize     = 16
)

var ErrWrongPassphrase = errors.New("wrong passphrase")

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// identify settles the user id (config or prompt) and the device id, which
// is generated once per local store.
func (a *App) identify(ctx context.Context) error {
	if a.userID == "" {
		userID, err := getSimpleText(a.reader, "Enter user id", a.out)
		if err != nil {
			return err
		}
		if userID == "" {
			return fmt.Errorf("%w: empty user id", common.ErrInvalidArgument)
		}
		a.userID = userID
	}

	if a.config != nil && a.config.DeviceID != "" {
		a.deviceID = a.config.DeviceID
		return nil
	}

	raw, err := a.kv.Get(ctx, keyDeviceID)
	if err != nil {
		return err
	}
	if raw != nil {
		a.deviceID = string(raw)
		return nil
	}

	a.deviceID = uuid.NewString()
	if err := a.kv.Set(ctx, keyDeviceID, []byte(a.deviceID)); err != nil {
		return err
	}
	a.logger.Info(ctx, "registered new device", "device_id", a.deviceID)
	return nil
}

// Unlock asks for the passphrase and derives the key for the local store.
// The first unlock creates the salt and a verifier record; later unlocks
// check the passphrase against the verifier.
func (a *App) Unlock(ctx context.Context) error {
	salt, err := a.kv.Get(ctx, keySalt)
	if err != nil {
		return err
	}
	if salt == nil {
		salt = common.GenerateRandByteArray(saltSize)
		if err := a.kv.Set(ctx, keySalt, salt); err != nil {
			return err
		}
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	key := cryptox.DeriveMasterKey(password, salt)
	common.WipeByteArray(password)

	c, err := cryptox.NewAESCipher(key)
	common.WipeByteArray(key)
	if err != nil {
		return err
	}

	verifier, err := a.kv.Get(ctx, keyVerifier)
	if err != nil {
		return err
	}
	if verifier == nil {
		sealed, err := c.Encrypt(verifierText)
		if err != nil {
			return err
		}
		if err := a.kv.Set(ctx, keyVerifier, []byte(sealed)); err != nil {
			return err
		}
	} else {
		var got string
		if err := c.Decrypt(string(verifier), &got); err != nil || got != verifierText {
			a.logger.Warn(ctx, "unlock failed")
			return ErrWrongPassphrase
		}
	}

	a.cipher = c
	a.logger.Info(ctx, "local store unlocked")
	return nil
}

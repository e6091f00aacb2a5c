// Package cli provides the interactive draftkeeper intake shell.
//
// It wires configuration, the device key-value store, the passphrase-derived
// cipher, the gRPC client and a connectivity monitor, then runs a REPL over
// one open draft at a time (see session.Session).
//
// Typical flow: pick the user id, unlock the local store with the
// passphrase, then create or open a draft and fill it in. Edits are saved
// locally right away and pushed to the server in the background; conflicts
// and locks held by another device are reported in the prompt.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli

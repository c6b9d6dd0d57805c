package p2p

import (
	"context"
	stded25519 "crypto/ed25519"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"runtime"

	badger "github.com/ipfs/go-ds-badger"
	"github.com/libp2p/go-libp2p-core/crypto"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/libp2p/go-libp2p-core/peerstore"
	"github.com/libp2p/go-libp2p-peerstore/pstoreds"
	"github.com/pkg/errors"
)

const (
	// PubKeyFileName is the name of the file the public key of the relay is stored in, next to the peer store.
	PubKeyFileName = "key.pub"
)

var (
	// ErrPrivKeyInvalid is returned if a configured private key can't be parsed.
	ErrPrivKeyInvalid = errors.New("invalid private key")
	// ErrNoPrivKeyFound is returned if no private key was configured.
	ErrNoPrivKeyFound = errors.New("no private key found")
	// ErrPrivKeyMismatch is returned if the configured private key differs from the stored one.
	ErrPrivKeyMismatch = errors.New("stored private key doesn't match configured private key")
)

// Identity is the persistent identity of the relay.
type Identity struct {
	PrivateKey crypto.PrivKey
	ID         peer.ID
	// Holds the key pair of the relay and the addresses of known peers.
	PeerStore peerstore.Peerstore
	// Whether the identity was created during this start.
	Created bool

	datastore io.Closer
}

// Close closes the peer store and the underlying database.
func (i *Identity) Close() error {
	if err := i.PeerStore.Close(); err != nil {
		_ = i.datastore.Close()
		return errors.Wrap(err, "unable to close peer store")
	}
	if err := i.datastore.Close(); err != nil {
		return errors.Wrap(err, "unable to close peer store database")
	}
	return nil
}

// PeerStoreExists checks if the peer store folder exists and contains files.
func PeerStoreExists(peerStorePath string) bool {
	dir, err := os.Open(peerStorePath)
	if err != nil {
		return false
	}
	defer func() { _ = dir.Close() }()

	// an empty directory may be a prepared docker volume
	if _, err = dir.Readdirnames(1); err == io.EOF {
		return false
	}

	return true
}

// NewPeerstore creates a peer store backed by badger.
// The returned datastore must be closed after the peer store.
func NewPeerstore(peerStorePath string) (peerstore.Peerstore, *badger.Datastore, error) {
	badgerOpts := badger.DefaultOptions

	// the value log gets corrupted on windows otherwise
	badgerOpts.Truncate = runtime.GOOS == "windows"

	badgerStore, err := badger.NewDatastore(peerStorePath, &badgerOpts)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to initialize data store for peer store")
	}

	peerStore, err := pstoreds.NewPeerstore(context.Background(), badgerStore, pstoreds.DefaultOpts())
	if err != nil {
		_ = badgerStore.Close()
		return nil, nil, errors.Wrap(err, "unable to initialize peer store")
	}

	return peerStore, badgerStore, nil
}

// ParsePrivateKey parses a hex encoded Ed25519 private key.
func ParsePrivateKey(identityPrivKey string) (crypto.PrivKey, error) {
	if identityPrivKey == "" {
		return nil, ErrNoPrivKeyFound
	}

	keyBytes, err := hex.DecodeString(identityPrivKey)
	if err != nil || len(keyBytes) != stded25519.PrivateKeySize {
		return nil, ErrPrivKeyInvalid
	}

	stdPrvKey := stded25519.PrivateKey(keyBytes)
	prvKey, _, err := crypto.KeyPairFromStdKey(&stdPrvKey)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load Ed25519 key pair for peer identity")
	}

	return prvKey, nil
}

// LoadOrCreateIdentity loads the identity stored in the peer store at the given path.
// If the peer store is new, the identity is derived from the given hex encoded private key,
// or generated if none is given.
func LoadOrCreateIdentity(peerStorePath string, identityPrivKey string) (*Identity, error) {
	isNew := !PeerStoreExists(peerStorePath)

	peerStore, datastore, err := NewPeerstore(peerStorePath)
	if err != nil {
		return nil, err
	}
	identity := &Identity{PeerStore: peerStore, Created: isNew, datastore: datastore}

	pubKeyFilePath := filepath.Join(peerStorePath, PubKeyFileName)

	var prvKey crypto.PrivKey
	if isNew {
		prvKey, err = createIdentity(pubKeyFilePath, identityPrivKey)
	} else {
		prvKey, err = loadIdentity(pubKeyFilePath, peerStore, identityPrivKey)
	}
	if err != nil {
		_ = identity.Close()
		return nil, err
	}

	id, err := peer.IDFromPrivateKey(prvKey)
	if err != nil {
		_ = identity.Close()
		return nil, errors.Wrap(err, "unable to derive peer ID")
	}

	if err := peerStore.AddPrivKey(id, prvKey); err != nil {
		_ = identity.Close()
		return nil, errors.Wrap(err, "unable to store private key")
	}
	if err := peerStore.AddPubKey(id, prvKey.GetPublic()); err != nil {
		_ = identity.Close()
		return nil, errors.Wrap(err, "unable to store public key")
	}

	identity.PrivateKey = prvKey
	identity.ID = id

	return identity, nil
}

// the peer ID can't be listed from the peer store,
// so the public key is kept in a separate file to find the private key again.
func createIdentity(pubKeyFilePath string, identityPrivKey string) (crypto.PrivKey, error) {
	prvKey, err := ParsePrivateKey(identityPrivKey)
	if err != nil {
		if !errors.Is(err, ErrNoPrivKeyFound) {
			return nil, err
		}

		prvKey, _, err = crypto.GenerateKeyPair(crypto.Ed25519, -1)
		if err != nil {
			return nil, errors.Wrap(err, "unable to generate Ed25519 key pair for peer identity")
		}
	}

	pubKey, err := crypto.MarshalPublicKey(prvKey.GetPublic())
	if err != nil {
		return nil, errors.Wrap(err, "unable to marshal public key for public key identity file")
	}

	if err := os.WriteFile(pubKeyFilePath, pubKey, 0600); err != nil {
		return nil, errors.Wrap(err, "unable to save public key identity file")
	}

	return prvKey, nil
}

func loadIdentity(pubKeyFilePath string, peerStore peerstore.Peerstore, identityPrivKey string) (crypto.PrivKey, error) {
	pubKeyBytes, err := os.ReadFile(pubKeyFilePath)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read public key identity file")
	}

	pubKey, err := crypto.UnmarshalPublicKey(pubKeyBytes)
	if err != nil {
		return nil, errors.Wrap(err, "unable to unmarshal public key from public key identity file")
	}

	peerID, err := peer.IDFromPublicKey(pubKey)
	if err != nil {
		return nil, errors.Wrap(err, "unable to convert public key to peer ID")
	}

	storedPrivKey := peerStore.PrivKey(peerID)
	if storedPrivKey == nil {
		return nil, errors.Errorf("no private key stored for peer identity %s", peerID)
	}

	configPrivKey, err := ParsePrivateKey(identityPrivKey)
	if err != nil {
		if errors.Is(err, ErrNoPrivKeyFound) {
			return storedPrivKey, nil
		}
		return nil, err
	}

	if !storedPrivKey.Equals(configPrivKey) {
		return nil, errors.Wrapf(ErrPrivKeyMismatch, "peer identity %s", peerID)
	}

	return storedPrivKey, nil
}

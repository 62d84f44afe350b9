// Command astree-vectors checks an ASTree implementation against a JSON
// file of golden (sender, generation) -> (key, nonce) vectors, in the
// spirit of the MLS working-group conformance harnesses that ship
// alongside real go-mls trees.
package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"

	mls "github.com/anhph0/openmls"
)

const defaultMaxBytes int64 = 1 << 20

type vectorFile struct {
	CipherSuite       uint16   `json:"cipher_suite"`
	ApplicationSecret string   `json:"application_secret_hex"`
	RosterSize        uint32   `json:"roster_size"`
	Cases             []vecase `json:"cases"`
}

type vecase struct {
	Sender     uint32 `json:"sender"`
	Generation uint32 `json:"generation"`
	KeyHex     string `json:"key_hex"`
	NonceHex   string `json:"nonce_hex"`
}

func main() {
	path := flag.String("vectors", "vectors/astree.json", "path to a JSON vector file")
	maxBytes := flag.Int64("max-bytes", defaultMaxBytes, "maximum vector file size in bytes")
	flag.Parse()

	if err := run(*path, *maxBytes); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(path string, maxBytes int64) error {
	raw, err := readVectorFile(path, maxBytes)
	if err != nil {
		return err
	}

	var file vectorFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return errors.Wrap(err, "parse vector file")
	}

	secret, err := hex.DecodeString(file.ApplicationSecret)
	if err != nil {
		return errors.Wrap(err, "decode application_secret_hex")
	}

	tree, err := mls.NewASTree(mls.CipherSuite(file.CipherSuite), secret, mls.RosterIndex(file.RosterSize))
	if err != nil {
		return errors.Wrap(err, "construct astree")
	}
	defer tree.Close()

	verified := 0
	for i, c := range file.Cases {
		secrets, err := tree.GetSecret(mls.RosterIndex(c.Sender), c.Generation)
		if err != nil {
			return errors.Wrapf(err, "case %d: get_secret(sender=%d, generation=%d)", i, c.Sender, c.Generation)
		}

		wantKey, err := hex.DecodeString(c.KeyHex)
		if err != nil {
			return errors.Wrapf(err, "case %d: decode key_hex", i)
		}
		wantNonce, err := hex.DecodeString(c.NonceHex)
		if err != nil {
			return errors.Wrapf(err, "case %d: decode nonce_hex", i)
		}

		if !bytes.Equal(secrets.Key.Bytes(), wantKey) {
			return errors.Errorf("case %d: key mismatch", i)
		}
		if !bytes.Equal(secrets.Nonce.Bytes(), wantNonce) {
			return errors.Errorf("case %d: nonce mismatch", i)
		}
		verified++
	}

	fmt.Printf("astree-vectors: %d cases PASS\n", verified)
	return nil
}

func readVectorFile(path string, maxBytes int64) ([]byte, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if stat.Size() > maxBytes {
		return nil, errors.Errorf("%s exceeds %d bytes", path, maxBytes)
	}
	return os.ReadFile(path)
}

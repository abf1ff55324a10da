// Command segproducer is the reference producer CLI (spec.md §6): it
// signs a file into a hash-chain of segments and serves them over UDP to
// any consumer that expresses interests for them.
package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ndnchain/hcfetch/face"
	"github.com/ndnchain/hcfetch/internal/config"
	"github.com/ndnchain/hcfetch/ndn"
	"github.com/ndnchain/hcfetch/security"
)

var (
	verbose            bool
	carryHashInContent bool
	skipUnchanged      bool
	signerID           string
	listenAddr         string
	configPath         string
)

func main() {
	root := &cobra.Command{
		Use:   "segproducer [flags] ndn-name file-path",
		Short: "Sign a file into a hash-chain of segments and serve it",
		Args:  cobra.ExactArgs(2),
		RunE:  run,
	}
	flags := root.Flags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	flags.BoolVarP(&carryHashInContent, "content-hash", "h", false, "carry NextHash inside application content instead of SignatureInfo")
	flags.BoolVarP(&skipUnchanged, "skip-unchanged", "t", false, "skip re-signing if the file's content digest matches the last publish")
	flags.StringVarP(&signerID, "signer", "s", "", "signing identity (defaults to the key store's default identity)")
	flags.StringVar(&listenAddr, "listen", "", "UDP address to serve on (overrides config)")
	flags.StringVar(&configPath, "config", "", "path to a YAML defaults file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		exitCode := 1
		var nf *notFoundError
		if errors.As(err, &nf) {
			exitCode = 2
		}
		os.Exit(exitCode)
	}
}

func run(_ *cobra.Command, args []string) error {
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listenAddr == "" {
		listenAddr = cfg.Endpoint
	}
	if signerID == "" {
		signerID = cfg.DefaultSignerID
	}
	digest, err := security.ParseDigestAlgorithm(cfg.Digest)
	if err != nil {
		return err
	}

	name, filePath := args[0], args[1]
	content, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &notFoundError{path: filePath}
		}
		return fmt.Errorf("reading %q: %w", filePath, err)
	}

	keyDir := cfg.KeyDir
	if keyDir == "" {
		keyDir = defaultKeyDir()
	}
	ks := security.NewFileKeyStore(keyDir, "default")
	signer := security.NewChainSigner(ks)

	opts := security.SignOptions{
		Digest:                 digest,
		SignerID:               signerID,
		CarryNextHashInContent: carryHashInContent,
		SkipUnchanged:          skipUnchanged,
		MaxPayload:             security.DefaultMaxPayload,
	}

	var packets []ndn.Data
	cachePath := publishCachePath(keyDir, name)
	if skipUnchanged {
		if cached, ok := loadCachedPublish(cachePath, content); ok {
			packets = cached
			logrus.WithField("name", name).Debug("content unchanged, reusing prior signing")
		}
	}
	if packets == nil {
		packets, err = signer.Sign(ndn.NameFromString(name), content, opts)
		if err != nil {
			return fmt.Errorf("signing %q: %w", name, err)
		}
		if skipUnchanged {
			if err := savePublishCache(cachePath, content, packets); err != nil {
				logrus.WithError(err).Warn("could not persist publish cache")
			}
		}
	}
	logrus.WithFields(logrus.Fields{
		"segments": len(packets),
		"size":     humanize.Bytes(uint64(len(content))),
	}).Debug("signed object")

	udpAddr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return fmt.Errorf("resolving listen address %q: %w", listenAddr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listening on %q: %w", listenAddr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		cancel()
	}()

	reactor := face.NewGoReactor()
	f := face.NewUDPFace(conn, reactor)
	for _, d := range packets {
		_ = f.Put(ctx, d)
	}
	f.Listen(ctx)

	logrus.WithField("addr", conn.LocalAddr()).Info("serving")
	reactor.Run(ctx)
	return nil
}

// notFoundError maps to exit code 2 (spec.md §6: "input-file-not-found").
type notFoundError struct{ path string }

func (e *notFoundError) Error() string { return fmt.Sprintf("file not found: %s", e.path) }

func defaultKeyDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".hcfetch-keys"
	}
	return dir + "/hcfetch/keys"
}

// publishCache is the on-disk record -t (SkipUnchanged) compares against:
// security.ChainSigner.Sign is stateless by design (see SignOptions.SkipUnchanged's
// doc comment), so the caller-side digest comparison and packet cache live here.
type publishCache struct {
	Digest  [32]byte
	Packets []ndn.Data
}

func publishCachePath(keyDir, name string) string {
	sum := sha256.Sum256([]byte(name))
	return filepath.Join(keyDir, fmt.Sprintf("publish-%x.gob", sum[:8]))
}

func loadCachedPublish(path string, content []byte) ([]ndn.Data, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()
	var c publishCache
	if err := gob.NewDecoder(f).Decode(&c); err != nil {
		return nil, false
	}
	if c.Digest != sha256.Sum256(content) {
		return nil, false
	}
	return c.Packets, true
}

func savePublishCache(path string, content []byte, packets []ndn.Data) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	var buf bytes.Buffer
	c := publishCache{Digest: sha256.Sum256(content), Packets: packets}
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

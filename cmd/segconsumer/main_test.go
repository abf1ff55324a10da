package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndnchain/hcfetch/security"
)

func TestKeyResolverForEndpointLoadsProducerDefaultIdentity(t *testing.T) {
	dir := t.TempDir()
	old, hadOld := os.LookupEnv("XDG_CONFIG_HOME")
	require.NoError(t, os.Setenv("XDG_CONFIG_HOME", dir))
	t.Cleanup(func() {
		if hadOld {
			os.Setenv("XDG_CONFIG_HOME", old)
		} else {
			os.Unsetenv("XDG_CONFIG_HOME")
		}
	})

	// Seed the identity keyResolverForEndpoint is about to load, the same
	// way a prior segproducer run would have generated one on first use.
	ks := security.NewFileKeyStore(filepath.Join(dir, "hcfetch", "keys"), "default")
	id, err := ks.Default()
	require.NoError(t, err)

	resolver, err := keyResolverForEndpoint()
	require.NoError(t, err)

	pub, err := resolver.Resolve([]byte(id.Name))
	require.NoError(t, err)
	assert.True(t, pub.Equal(&id.PrivateKey.PublicKey))

	_, err = resolver.Resolve([]byte("unknown-identity"))
	assert.Error(t, err)
}

func TestDefaultKeyDirUsesConfigDir(t *testing.T) {
	dir := t.TempDir()
	old, hadOld := os.LookupEnv("XDG_CONFIG_HOME")
	require.NoError(t, os.Setenv("XDG_CONFIG_HOME", dir))
	t.Cleanup(func() {
		if hadOld {
			os.Setenv("XDG_CONFIG_HOME", old)
		} else {
			os.Unsetenv("XDG_CONFIG_HOME")
		}
	})

	assert.Equal(t, filepath.Join(dir, "hcfetch", "keys"), defaultKeyDir())
}

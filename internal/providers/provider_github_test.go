package providers

import (
	"strings"
	"testing"

	ghapi "github.com/google/go-github/v72/github"
	"github.com/stretchr/testify/require"
)

func TestParseChecksumFile(t *testing.T) {
	t.Parallel()

	digest := "aa11223344556677889900aabbccddeeff00112233445566778899aabbccddee"

	// Bare digest.
	sum := parseChecksumFile(strings.NewReader(digest+"\n"), "quotedesk_2.6.0.zip")
	require.Equal(t, digest, sum)

	// sha256sum output format.
	body := digest + "  quotedesk_2.6.0.zip\nffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff  other.zip\n"
	sum = parseChecksumFile(strings.NewReader(body), "quotedesk_2.6.0.zip")
	require.Equal(t, digest, sum)

	// Digest for a different file doesn't match.
	sum = parseChecksumFile(strings.NewReader(digest+"  other.zip\n"), "quotedesk_2.6.0.zip")
	require.Empty(t, sum)

	// Garbage in, nothing out.
	sum = parseChecksumFile(strings.NewReader("no checksums here\n"), "quotedesk_2.6.0.zip")
	require.Empty(t, sum)
}

func TestSha256Pattern(t *testing.T) {
	t.Parallel()

	digest := "aa11223344556677889900aabbccddeeff00112233445566778899aabbccddee"

	body := "## Changes\n- Faster charts\n\nSHA256: `" + digest + "`\n"
	m := sha256Pattern.FindStringSubmatch(body)
	require.NotNil(t, m)
	require.Equal(t, digest, strings.ToLower(m[1]))

	m = sha256Pattern.FindStringSubmatch("sha256=" + strings.ToUpper(digest))
	require.NotNil(t, m)
	require.Equal(t, digest, strings.ToLower(m[1]))

	require.Nil(t, sha256Pattern.FindStringSubmatch("SHA256: not-a-digest"))
}

func TestPickZipAsset(t *testing.T) {
	t.Parallel()

	genericName := "quotedesk_2.6.0.zip"
	notesName := "notes.txt"

	assets := []*ghapi.ReleaseAsset{
		{Name: &notesName},
		{Name: &genericName},
	}

	asset := pickZipAsset(assets)
	require.NotNil(t, asset)
	require.Equal(t, genericName, asset.GetName())

	require.Nil(t, pickZipAsset([]*ghapi.ReleaseAsset{{Name: &notesName}}))
}

func TestIsHexDigest(t *testing.T) {
	t.Parallel()

	require.True(t, isHexDigest(strings.Repeat("a", 64)))
	require.True(t, isHexDigest(strings.Repeat("A0", 32)))
	require.False(t, isHexDigest(strings.Repeat("a", 63)))
	require.False(t, isHexDigest(strings.Repeat("g", 64)))
}

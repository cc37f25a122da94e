package web

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanName(t *testing.T) {
	require.Equal(t, "Eve", cleanName("  <b>Eve</b>  "))
	require.Equal(t, "Eve", cleanName("<script>alert(1)</script>Eve"))
	require.Equal(t, "", cleanName("<img src=x onerror=alert(1)>"))
	require.Equal(t, "김철수", cleanName("김철수"))
	require.Equal(t, "Sarah 😀", cleanName("Sarah 😀\u0007"))
	require.Len(t, []rune(cleanName(strings.Repeat("x", 200))), maxNameLen)
}

func TestCleanBody(t *testing.T) {
	require.Equal(t, "hello\nworld", cleanBody("hello\nworld"))
	require.Equal(t, "tags gone", cleanBody("<i>tags</i> <u>gone</u>"))
	require.Equal(t, "a < b && b > c", cleanBody("a &lt; b &amp;&amp; b &gt; c"))
	require.Equal(t, "", cleanBody("\u0000\u0001\u0002"))
}

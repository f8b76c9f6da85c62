package cache

import (
	"bytes"
	"fmt"
	"testing"
)

func BenchmarkCacheGet(b *testing.B) {
	c := New(Options{MaxEntries: 10000})
	for i := 0; i < 1000; i++ {
		c.Set(Key("fn", fmt.Sprint(i)), bytes.Repeat([]byte("x"), 100))
	}
	key := Key("fn", "999")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(key)
	}
}

func BenchmarkCacheSet(b *testing.B) {
	c := New(Options{MaxEntries: 1000})
	value := bytes.Repeat([]byte("x"), 100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Set(fmt.Sprintf("key%d", i), value)
	}
}

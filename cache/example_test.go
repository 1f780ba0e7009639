package cache_test

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/uibridge/auth"
	"github.com/jonwraymond/uibridge/cache"
)

func ExampleManager() {
	m := cache.NewManager(cache.Config{})
	id := &auth.Identity{UserID: "u1", AppName: "shop", Kind: auth.KindSession}

	req := cache.Request{Command: "^ListUsers", Action: "read"}
	key := m.GenerateKey(context.Background(), req, id)

	_ = m.CacheQuery(key, []string{"alice", "bob"}, time.Minute, id)

	if data, ok := m.GetQuery(key); ok {
		fmt.Println("hit:", data)
	}

	fmt.Println("cleared:", m.ClearUser("u1"))
	// Output:
	// hit: [alice bob]
	// cleared: 1
}

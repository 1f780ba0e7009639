package auth_test

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jonwraymond/uibridge/auth"
)

// mapDirectory backs the examples with a fixed token table.
type mapDirectory map[string]*auth.Record

func (d mapDirectory) LookupToken(_ context.Context, token string) (*auth.Record, error) {
	return d[token], nil
}

func ExampleManager_Authenticate() {
	dir := mapDirectory{
		"tok-1": {UserID: "u1", AppName: "shop", Role: "admin"},
	}
	m := auth.NewManager(auth.Config{Enabled: true, Directory: dir})

	q, _ := url.ParseQuery("token=tok-1")
	id, err := m.Authenticate(context.Background(), &auth.ConnectRequest{Query: q})
	if err != nil {
		fmt.Println("rejected:", err)
		return
	}
	fmt.Printf("%s@%s (%s)\n", id.UserID, id.AppName, id.Kind)
	// Output:
	// u1@shop (session)
}

func ExampleAnonymous() {
	id := auth.Anonymous()
	fmt.Println(id.UserID, id.AppName, id.Role, id.Kind)
	// Output:
	// anonymous default guest none
}

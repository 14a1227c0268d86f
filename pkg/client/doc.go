// Package client is a Go client for the KAS session protocol. A Client owns
// one authenticated connection and issues one request at a time; non-OK
// replies surface as *packet.StatusError values.
//
// Example:
//
//	c, err := client.Dial(ctx, "127.0.0.1:14560", client.Options{User: "admin", Password: "secret"})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//	_ = c.DefineQueue(ctx, client.QueueSpec{Name: "ORDERS", Threshold: 1000})
//	_ = c.Put(ctx, "ORDERS", message.NewText("hello"))
//	m, _ := c.Get(ctx, "ORDERS", client.GetOptions{Timeout: 5 * time.Second})
package client

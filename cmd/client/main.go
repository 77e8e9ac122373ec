// Command client lists and invokes the paid operations of a gateway.
//
//	client [flags] list
//	client [flags] call <operation> '<json arguments>'
//
// Credentials come from flags or the environment (a .env file is read when
// present): PAYGATE_ENDPOINT, PAYGATE_TOKEN, or PAYGATE_FUNDING_SOURCE with
// PAYGATE_HMAC_SECRET.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"paygate/pkg/client"
	"paygate/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	endpoint := flag.String("endpoint", envOr("PAYGATE_ENDPOINT", "http://localhost:8080/mcp"), "gateway MCP endpoint")
	token := flag.String("token", os.Getenv("PAYGATE_TOKEN"), "bearer token")
	fundingSource := flag.String("funding-source", os.Getenv("PAYGATE_FUNDING_SOURCE"), "funding source id for HMAC signing")
	secret := flag.String("secret", os.Getenv("PAYGATE_HMAC_SECRET"), "HMAC secret of the funding source")
	retries := flag.Int("retries", 2, "retries of transient failures")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	logLevel := flag.String("log-level", envOr("PAYGATE_LOG_LEVEL", "warn"), "log level")
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
	}

	log := logger.NewWithWriter(*logLevel, zerolog.ConsoleWriter{Out: os.Stderr})
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var creds client.Credentials
	switch {
	case *token != "":
		creds = client.Bearer{Token: *token}
	case *fundingSource != "" && *secret != "":
		creds = client.HMAC{FundingSourceID: *fundingSource, Secret: *secret}
	}

	c, err := client.Dial(ctx, client.Config{
		Endpoint:    *endpoint,
		Credentials: creds,
		MaxRetries:  *retries,
		Logger:      &log,
	})
	if err != nil {
		fail(err)
	}
	defer c.Close()

	switch flag.Arg(0) {
	case "list":
		err = list(ctx, c)
	case "call":
		if flag.NArg() < 2 {
			usage()
		}
		err = call(ctx, c, flag.Arg(1), flag.Arg(2))
	default:
		usage()
	}
	if err != nil {
		fail(err)
	}
}

func list(ctx context.Context, c *client.Client) error {
	ops, err := c.ListOperations(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OPERATION\tPRICE\tDESCRIPTION")
	for _, op := range ops {
		price := "unavailable"
		switch {
		case op.Free:
			price = "free"
		case op.Priced:
			price = op.Price.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", op.Name, price, op.Description)
	}
	return w.Flush()
}

func call(ctx context.Context, c *client.Client, operation, rawArgs string) error {
	args := map[string]any{}
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return fmt.Errorf("arguments must be a JSON object: %w", err)
		}
	}

	res, err := c.Invoke(ctx, operation, args)
	if err != nil {
		var opErr *client.OperationError
		if errors.As(err, &opErr) && opErr.Receipt != nil {
			fmt.Fprintf(os.Stderr, "paid %s (refunded: %t)\n", opErr.Receipt.Amount, opErr.Receipt.Refunded)
		}
		return err
	}

	fmt.Println(res.Text)
	if r := res.Receipt; r != nil {
		if r.Free {
			fmt.Fprintln(os.Stderr, "free operation")
		} else {
			fmt.Fprintf(os.Stderr, "paid %s from %s (transfer %s, replayed: %t)\n", r.Amount, r.PayerID, r.TransferID, r.Replayed)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: client [flags] list | call <operation> '<json arguments>'")
	flag.PrintDefaults()
	os.Exit(2)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

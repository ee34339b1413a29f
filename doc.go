// Package rsvpd exposes the Go APIs behind the host reservation daemon. The
// daemon arbitrates exclusive, time-bounded reservations of lab machines and
// shared resources, grouped into administrator-defined classes, and probes
// real machines for liveness so dead ones are not handed out.
//
// # Running a server
//
// The server listens on Config.Listen (default ":1752") and persists its
// full model to Config.StateFile after every mutation.
//
//	cfg := rsvpd.DefaultConfig()
//	cfg.StateFile = "/var/lib/rsvpd/hosts.state"
//	srv, err := rsvpd.NewServer(cfg, rsvpd.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// StartServer runs the same thing in the background and hands back a
// shutdown function, which is the convenient shape for embedding:
//
//	srv, stop, err := rsvpd.StartServer(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer stop(context.Background())
//
// # Client
//
// The Go client (pkt.systems/rsvpd/client) speaks the JSON framing:
//
//	cli := client.New("localhost:1752")
//	defer cli.Close()
//	if _, err := cli.ReserveHost(ctx, "build-3", "alice", client.ReserveOptions{}); err != nil {
//	    log.Fatal(err)
//	}
//
// Legacy clients that still emit the hex line encoding keep working: the
// server decodes those requests and answers in the same framing.
package rsvpd

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"git.sr.ht/~jakintosh/sessiongate/pkg/providertest"
	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
)

// Config holds all command-line configuration
type Config struct {
	ListenAddr   string
	Users        []providertest.User
	RedirectPath string
	FailSignOut  bool
	Quiet        bool
}

// OutputContract is the JSON structure emitted on stdout
type OutputContract struct {
	BaseURL string       `json:"base_url"`
	Users   []OutputUser `json:"users"`
}

type OutputUser struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// UserFlag is a custom flag type for repeatable --user flags
type UserFlag []providertest.User

func (u *UserFlag) String() string {
	return fmt.Sprintf("%v", *u)
}

func (u *UserFlag) Set(value string) error {
	parts := strings.SplitN(value, ":", 3)
	if len(parts) < 2 {
		return fmt.Errorf("user must be in format 'username:role' or 'username:role:First Last'")
	}
	info := session.UserInfo{
		UID:      "uid-" + parts[0],
		Email:    parts[0] + "@example.com",
		Username: parts[0],
		Role:     session.Role(parts[1]),
	}
	var profile *session.UserProfile
	if len(parts) == 3 {
		first, last, _ := strings.Cut(parts[2], " ")
		profile = &session.UserProfile{FirstName: first, LastName: last}
	}
	*u = append(*u, providertest.User{Info: info, Profile: profile})
	return nil
}

func main() {
	cfg := parseFlags()

	if cfg.Quiet {
		log.SetOutput(io.Discard)
	}

	provider := providertest.New(cfg.Users...)
	provider.RedirectPath(cfg.RedirectPath)
	provider.FailSignOut(cfg.FailSignOut)

	// Start HTTP server with ephemeral port
	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("failed to listen: %v\n", err)
	}
	defer listener.Close()

	addr := listener.Addr().(*net.TCPAddr)
	contract := OutputContract{
		BaseURL: fmt.Sprintf("http://%s:%d", addr.IP, addr.Port),
		Users:   make([]OutputUser, len(cfg.Users)),
	}
	for i, user := range cfg.Users {
		contract.Users[i] = OutputUser{
			UID:      user.Info.UID,
			Username: user.Info.Username,
			Role:     string(user.Info.Role),
		}
	}

	// Emit JSON contract to stdout
	if err := json.NewEncoder(os.Stdout).Encode(contract); err != nil {
		log.Fatalf("failed to encode JSON contract: %v\n", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- http.Serve(listener, provider.Handler())
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalf("server error: %v\n", err)
	case sig := <-sigChan:
		log.Printf("received signal %v, shutting down\n", sig)
	}
}

func parseFlags() Config {
	var cfg Config
	var users UserFlag

	flag.StringVar(&cfg.ListenAddr, "listen", "127.0.0.1:0", "Listen address (default uses ephemeral port)")
	flag.Var(&users, "user", "User in format 'username:role[:First Last]' (repeatable)")
	flag.StringVar(&cfg.RedirectPath, "redirect-path", "", "Send logins to this path instead of the redirect_uri path")
	flag.BoolVar(&cfg.FailSignOut, "fail-sign-out", false, "Answer every logout with 502")
	flag.BoolVar(&cfg.Quiet, "quiet", false, "Suppress log output")

	flag.Parse()

	if len(users) == 0 {
		users.Set("admin:admin:Test Admin")
		users.Set("user:user")
	}
	cfg.Users = users

	return cfg
}

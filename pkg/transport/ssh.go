package transport

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/newtron-network/netverify/pkg/util"
)

// SSHDialer opens an interactive shell over SSH with a PTY.
type SSHDialer struct {
	// HostKeyCallback defaults to ssh.InsecureIgnoreHostKey.
	HostKeyCallback ssh.HostKeyCallback
	// TermType defaults to "vt100".
	TermType string
}

// Dial connects, authenticates, requests a PTY and starts a shell.
func (d *SSHDialer) Dial(ctx context.Context, t Target) (Conn, error) {
	hostKey := d.HostKeyCallback
	if hostKey == nil {
		// Field devices are reached by address from an inventory without
		// known_hosts entries.
		hostKey = ssh.InsecureIgnoreHostKey()
	}

	auth := []ssh.AuthMethod{
		ssh.Password(t.Password),
		ssh.KeyboardInteractive(answerAll(t.Password)),
	}
	if t.Interactive {
		auth = []ssh.AuthMethod{ssh.KeyboardInteractive(answerAll(t.Password))}
	}

	config := &ssh.ClientConfig{
		User:            t.Username,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         t.timeout(),
	}
	// Older network OSes only offer legacy algorithms.
	config.SetDefaults()
	config.KeyExchanges = append(config.KeyExchanges, "diffie-hellman-group14-sha1", "diffie-hellman-group1-sha1")
	config.Ciphers = append(config.Ciphers, "aes128-cbc", "3des-cbc")
	config.HostKeyAlgorithms = []string{
		ssh.KeyAlgoED25519, ssh.KeyAlgoECDSA256, ssh.KeyAlgoRSASHA512, ssh.KeyAlgoRSASHA256, ssh.KeyAlgoRSA,
	}

	addr := t.Addr()
	log := util.WithDevice(t.Name)
	log.Debugf("SSH dial %s as %s", addr, t.Username)

	nd := net.Dialer{Timeout: t.timeout()}
	nc, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: SSH dial %s: %v", ErrConnect, addr, err)
	}
	_ = nc.SetDeadline(time.Now().Add(t.timeout()))

	c, chans, reqs, err := ssh.NewClientConn(nc, addr, config)
	if err != nil {
		nc.Close()
		if isAuthError(err) {
			return nil, fmt.Errorf("%w: %v", ErrAuthRejected, err)
		}
		return nil, fmt.Errorf("%w: SSH handshake %s: %v", ErrConnect, addr, err)
	}
	_ = nc.SetDeadline(time.Time{})
	client := ssh.NewClient(c, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: SSH session: %v", ErrConnect, err)
	}

	term := d.TermType
	if term == "" {
		term = "vt100"
	}
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 38400,
		ssh.TTY_OP_OSPEED: 38400,
	}
	if err := session.RequestPty(term, 200, 511, modes); err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("%w: request PTY: %v", ErrConnect, err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("%w: stdin: %v", ErrConnect, err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("%w: stdout: %v", ErrConnect, err)
	}

	if err := session.Shell(); err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("%w: start shell: %v", ErrConnect, err)
	}

	return newStream(stdout, stdin, func() error {
		session.Close()
		return client.Close()
	}), nil
}

// answerAll answers every keyboard-interactive question with password.
func answerAll(password string) ssh.KeyboardInteractiveChallenge {
	return func(_, _ string, questions []string, _ []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for n := range questions {
			answers[n] = password
		}
		return answers, nil
	}
}

func isAuthError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain")
}

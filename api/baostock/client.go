// Package baostock bridges to the historical price fetcher, a helper
// subprocess speaking a line-oriented protocol: one command per line on
// stdin, one JSON document per line on stdout.  A malformed response is
// treated as a fault of the subprocess, which is restarted; the engine sees
// it as "no data this time".
package baostock

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/quotepulse/quotepulse/models"
	"github.com/quotepulse/quotepulse/utils/log"
)

const dateArg = "2006-01-02"

// Client owns the fetcher subprocess.  All commands are serialized: the
// protocol has no frame ids, so responses are matched to commands by order.
type Client struct {
	mu      sync.Mutex
	command []string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
}

// NewClient starts the fetcher subprocess, e.g.
// NewClient([]string{"python3", "fetcher.py"}).
func NewClient(command []string) (*Client, error) {
	if len(command) == 0 {
		return nil, errors.New("baostock: empty fetcher command")
	}
	c := &Client{command: command}
	if err := c.start(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) start() error {
	cmd := exec.Command(c.command[0], c.command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, "baostock: failed to open stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "baostock: failed to open stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "baostock: failed to start fetcher %v", c.command)
	}
	c.cmd = cmd
	c.stdin = stdin
	c.stdout = bufio.NewReader(stdout)
	log.Info("baostock fetcher started (pid %d)", cmd.Process.Pid)
	return nil
}

// restart kills the current subprocess and starts a fresh one.  Called with
// the mutex held.
func (c *Client) restart() {
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
		_ = c.cmd.Wait()
	}
	if err := c.start(); err != nil {
		log.Error("baostock fetcher restart failed: %v", err)
	}
}

// fetch writes one command line and decodes the single-line JSON response
// into out.  A decode failure restarts the subprocess.
func (c *Client) fetch(out interface{}, api string, args ...string) error {
	command := strings.TrimSpace(api + " " + strings.Join(args, " "))

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := io.WriteString(c.stdin, command+"\n"); err != nil {
		c.restart()
		return errors.Wrapf(err, "baostock: failed to send %q", command)
	}
	line, err := c.stdout.ReadString('\n')
	if err != nil {
		c.restart()
		return errors.Wrapf(err, "baostock: failed to read response for %q", command)
	}
	if err := json.Unmarshal([]byte(line), out); err != nil {
		log.Error("baostock returned malformed response for %q, restarting fetcher: %v", command, err)
		c.restart()
		return errors.Wrapf(err, "baostock: malformed response for %q", command)
	}
	return nil
}

// FetchDailyPrices returns the daily bars of a stock between begin and end
// inclusive.
func (c *Client) FetchDailyPrices(id models.StockID, begin, end time.Time) ([]*models.DailyBar, error) {
	var bars []*models.DailyBar
	err := c.fetch(&bars, "getDailyPrice", id.BaoStock(), begin.Format(dateArg), end.Format(dateArg))
	return bars, err
}

// FetchMinutelyPrices returns the intraday bars of a stock between begin and
// end at the given interval in minutes.
func (c *Client) FetchMinutelyPrices(id models.StockID, begin, end time.Time, interval int) ([]*models.MinuteBar, error) {
	var bars []*models.MinuteBar
	err := c.fetch(&bars, "getMinutelyPrice", id.BaoStock(), begin.Format(dateArg), end.Format(dateArg), strconv.Itoa(interval))
	return bars, err
}

// Close asks the subprocess to exit and reaps it.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd == nil {
		return nil
	}
	_, _ = io.WriteString(c.stdin, "exit\n")
	_ = c.stdin.Close()
	done := make(chan error, 1)
	go func() { done <- c.cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		if err := c.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("baostock: failed to kill fetcher: %w", err)
		}
		return <-done
	}
}

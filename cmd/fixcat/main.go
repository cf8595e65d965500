// fixcat decodes a stream of FIX tag-value messages and prints them as
// humanized wire text plus a JSON payload. It is a read-only diagnostic:
// no session handling, no replies.
package main

import (
	"bytes"
	"flag"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pebbe/zmq4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gitlab.heather.loc/helios/fix/pkg/fix"
)

func main() {
	dsn := flag.String("dsn", "-", "input source: '-' for stdin, file://PATH or zmq://HOST:PORT[?topic=T]")
	version := flag.String("version", "fix44", "protocol version tag")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	protocol, err := fix.LoadProtocol(logger, *version)
	if err != nil {
		logger.Fatal("fixcat: fail load protocol", zap.String("version", *version), zap.Error(err))
	}

	p := &pump{logger: logger, protocol: protocol}
	if err = run(p, *dsn); err != nil {
		logger.Fatal("fixcat: fail", zap.String("dsn", *dsn), zap.Error(err))
	}
}

func run(p *pump, dsn string) error {
	if dsn == "-" {
		return pumpReader(p, os.Stdin)
	}
	if strings.HasPrefix(dsn, "file://") {
		f, err := os.Open(strings.TrimPrefix(dsn, "file://"))
		if err != nil {
			return errors.WithMessage(err, "fail open input file")
		}
		defer func() { _ = f.Close() }()
		return pumpReader(p, f)
	}
	if strings.HasPrefix(dsn, "zmq://") {
		return pumpZmq(p, dsn)
	}
	return errors.New("config not supported: " + dsn)
}

func pumpReader(p *pump, r io.Reader) error {
	chunk := make([]byte, 64*1024)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			p.feed(chunk[:n])
		}
		if err == io.EOF {
			p.flush()
			return nil
		}
		if err != nil {
			return errors.WithMessage(err, "fail read input")
		}
	}
}

func pumpZmq(p *pump, dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil {
		return errors.WithMessage(err, "fail parse zmq dsn")
	}
	if u.Hostname() == "" {
		return errors.New("host is empty")
	}
	if u.Port() == "" {
		return errors.New("port is empty")
	}
	addr := "tcp://" + u.Hostname() + ":" + u.Port()

	zmqCtx, err := zmq4.NewContext()
	if err != nil {
		return errors.WithMessage(err, "fail create zmq context")
	}
	soc, err := zmqCtx.NewSocket(zmq4.SUB)
	if err != nil {
		return errors.WithMessage(err, "fail create socket")
	}
	defer func() { _ = soc.Close() }()

	if err = soc.SetSubscribe(u.Query().Get("topic")); err != nil {
		return errors.WithMessage(err, "fail set subscription")
	}
	if err = soc.SetReconnectIvl(time.Second); err != nil {
		return errors.WithMessage(err, "fail set reconnect interval")
	}
	if err = soc.Connect(addr); err != nil {
		return errors.WithMessage(err, "fail connect "+addr)
	}
	p.logger.Info("fixcat: listening", zap.String("addr", addr))

	for {
		data, err := soc.RecvBytes(0)
		if err != nil {
			return errors.WithMessage(err, "fail receive")
		}
		p.feed(data)
	}
}

// pump accumulates stream bytes and drains complete messages. On a parse
// error it skips to the next frame start, the usual re-framing policy for
// a read-only tap.
type pump struct {
	logger   *zap.Logger
	protocol *fix.Protocol
	buf      []byte
}

func (p *pump) feed(data []byte) {
	p.buf = append(p.buf, data...)
	for len(p.buf) > 0 {
		res, err := p.protocol.Parse(p.buf)
		if errors.Is(err, fix.ErrNeedMore) {
			return
		}
		if err != nil {
			p.logger.Warn("fixcat: drop", zap.Error(err))
			if idx := bytes.Index(p.buf[1:], []byte("8=")); idx != -1 {
				p.buf = p.buf[idx+1:]
				continue
			}
			p.buf = nil
			return
		}
		p.print(res)
		p.buf = p.buf[res.Consumed:]
	}
}

func (p *pump) print(res *fix.ParseResult) {
	payload, err := jsoniter.Marshal(res.Payload)
	if err != nil {
		p.logger.Error("fixcat: fail marshal payload", zap.Error(err))
		return
	}
	p.logger.Info("fixcat: message",
		zap.String("message", res.Message.Name()),
		zap.String("wire", fix.Humanize(p.buf[:res.Consumed])),
		zap.ByteString("payload", payload))
}

func (p *pump) flush() {
	if len(p.buf) > 0 {
		p.logger.Warn("fixcat: trailing bytes", zap.String("wire", fix.Humanize(p.buf)))
	}
}

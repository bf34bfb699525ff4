package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"
)

// AdapterLink drives the host's default Bluetooth adapter.
type AdapterLink struct {
	adapter *bluetooth.Adapter

	enableOnce sync.Once
	enableErr  error

	mu   sync.Mutex
	seen map[string]bluetooth.Address
}

func NewAdapterLink() *AdapterLink {
	return &AdapterLink{adapter: bluetooth.DefaultAdapter, seen: make(map[string]bluetooth.Address)}
}

func (l *AdapterLink) enable() error {
	l.enableOnce.Do(func() {
		l.enableErr = l.adapter.Enable()
	})
	return l.enableErr
}

func (l *AdapterLink) Scan(ctx context.Context, match func(name, addr string) bool) (string, error) {
	if err := l.enable(); err != nil {
		return "", fmt.Errorf("enable adapter: %w", err)
	}

	found := make(chan bluetooth.Address, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = l.adapter.StopScan()
		case <-done:
		}
	}()

	err := l.adapter.Scan(func(a *bluetooth.Adapter, res bluetooth.ScanResult) {
		addr := res.Address.String()
		if !match(res.LocalName(), addr) {
			return
		}
		select {
		case found <- res.Address:
		default:
		}
		_ = a.StopScan()
	})
	if err != nil {
		return "", fmt.Errorf("scan: %w", err)
	}

	select {
	case a := <-found:
		key := strings.ToUpper(a.String())
		l.mu.Lock()
		l.seen[key] = a
		l.mu.Unlock()
		return a.String(), nil
	default:
		return "", ErrDeviceNotFound
	}
}

func (l *AdapterLink) Connect(ctx context.Context, addr string) (Conn, error) {
	key := strings.ToUpper(addr)
	l.mu.Lock()
	a, ok := l.seen[key]
	l.mu.Unlock()
	if !ok {
		// Platform addresses only come from advertisements, so resolve by scanning.
		if _, err := l.Scan(ctx, func(_, seen string) bool { return strings.EqualFold(seen, addr) }); err != nil {
			return nil, err
		}
		l.mu.Lock()
		a = l.seen[key]
		l.mu.Unlock()
	}

	dev, err := l.adapter.Connect(a, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, err
	}
	svcs, err := dev.DiscoverServices(nil)
	if err != nil {
		_ = dev.Disconnect()
		return nil, fmt.Errorf("discover services: %w", err)
	}
	conn := &adapterConn{dev: dev, chars: make(map[string]bluetooth.DeviceCharacteristic)}
	for _, svc := range svcs {
		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			continue
		}
		for _, ch := range chars {
			conn.chars[strings.ToLower(ch.UUID().String())] = ch
			conn.order = append(conn.order, ch)
		}
	}
	return conn, nil
}

type adapterConn struct {
	dev   bluetooth.Device
	chars map[string]bluetooth.DeviceCharacteristic
	order []bluetooth.DeviceCharacteristic
}

func (c *adapterConn) Read(charUUID string) ([]byte, error) {
	ch, ok := c.chars[strings.ToLower(charUUID)]
	if !ok {
		return nil, fmt.Errorf("characteristic %s not found", charUUID)
	}
	buf := make([]byte, 512)
	n, err := ch.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (c *adapterConn) Subscribe(fn func(charUUID string, data []byte)) (int, error) {
	n := 0
	var errs error
	for _, ch := range c.order {
		uuid := ch.UUID().String()
		err := ch.EnableNotifications(func(buf []byte) {
			data := make([]byte, len(buf))
			copy(data, buf)
			fn(uuid, data)
		})
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		n++
	}
	if n == 0 && errs != nil {
		return 0, errs
	}
	return n, nil
}

func (c *adapterConn) Close() error {
	return c.dev.Disconnect()
}

var _ Link = (*AdapterLink)(nil)

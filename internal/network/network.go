// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package network implements the point-to-point transport between block
// replicas. A NetworkReceiver owns one chanx.Chan and hands out at most one
// NetworkSender; whether that sender delivers in-process or over a TCP
// socket is invisible from the operator's side of the interface.
package network

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"net"
	"reflect"
	"sync"
	"time"

	"dataflow/internal/chanx"
	"dataflow/pkg/element"
)

// NetworkReceiver owns the inbound side of one ReceiverEndpoint. It is
// constructed eagerly (so the scheduler can wire every edge up front) but
// only binds a listening socket, for remote edges, when ListenRemoteSender
// is called — "bind on first use, not at construction" per the transport
// contract, so replicas that never receive anything never open a port.
type NetworkReceiver[T any] struct {
	endpoint element.ReceiverEndpoint
	ch       *chanx.Chan[element.NetworkMessage[T]]

	mu          sync.Mutex
	senderTaken bool
	listener    net.Listener
}

// NewNetworkReceiver creates a receiver for the given endpoint with the
// default channel capacity.
func NewNetworkReceiver[T any](endpoint element.ReceiverEndpoint) *NetworkReceiver[T] {
	return &NetworkReceiver[T]{
		endpoint: endpoint,
		ch:       chanx.New[element.NetworkMessage[T]](chanx.DefaultCapacity),
	}
}

// Endpoint returns the ReceiverEndpoint this receiver was built for.
func (r *NetworkReceiver[T]) Endpoint() element.ReceiverEndpoint { return r.endpoint }

// Chan exposes the underlying bounded channel for SimpleStartReceiver and
// BinaryStartReceiver to select over.
func (r *NetworkReceiver[T]) Chan() *chanx.Chan[element.NetworkMessage[T]] { return r.ch }

// LocalSender returns an in-process NetworkSender delivering directly into
// this receiver's channel. At most one sender — local or remote — may be
// taken from a NetworkReceiver; subsequent calls return nil, matching the
// "sender() can be called at most once" contract.
func (r *NetworkReceiver[T]) LocalSender() *NetworkSender[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.senderTaken {
		return nil
	}
	r.senderTaken = true
	return &NetworkSender[T]{local: r.ch}
}

// ListenRemoteSender binds a TCP listener lazily and returns a sender
// descriptor whose address remote replicas can dial. Like LocalSender,
// this may only be taken once per receiver.
func (r *NetworkReceiver[T]) ListenRemoteSender(addr string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.senderTaken {
		return "", fmt.Errorf("network: sender already taken for %s", r.endpoint)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("network: bind %s for %s: %w", addr, r.endpoint, err)
	}
	r.listener = ln
	r.senderTaken = true

	go r.acceptLoop(ln)
	return ln.Addr().String(), nil
}

// acceptLoop accepts exactly one inbound connection (one remote sender per
// endpoint in this model) and forwards decoded messages into the channel
// until the connection closes, at which point the channel is closed so
// pending recv()s observe Disconnected once the buffer drains.
func (r *NetworkReceiver[T]) acceptLoop(ln net.Listener) {
	conn, err := ln.Accept()
	if err != nil {
		r.ch.Close()
		return
	}
	defer conn.Close()

	typeTag := typeTagOf[T]()
	reader := bufio.NewReader(conn)
	for {
		msg, err := decodeFrame[T](reader, typeTag)
		if err != nil {
			if err != io.EOF {
				fmt.Printf("network: transport error reading %s: %v\n", r.endpoint, err)
			}
			r.ch.Close()
			return
		}
		if !r.ch.Send(msg) {
			return
		}
	}
}

// NetworkSender is the write side of an edge. From the operator's
// viewpoint, a local and a remote sender are indistinguishable: both
// expose Send.
type NetworkSender[T any] struct {
	local *chanx.Chan[element.NetworkMessage[T]]

	mu   sync.Mutex
	conn net.Conn
	addr string
}

// NewRemoteSender creates a sender that connects lazily, on the first
// Send, to a listening NetworkReceiver at addr.
func NewRemoteSender[T any](addr string) *NetworkSender[T] {
	return &NetworkSender[T]{addr: addr}
}

// Send delivers msg, dialing the remote peer on first use if this is a
// remote sender. Returns an error only for remote transport failures or a
// closed local channel.
func (s *NetworkSender[T]) Send(msg element.NetworkMessage[T]) error {
	if s.local != nil {
		if !s.local.Send(msg) {
			return fmt.Errorf("network: receiver for %v dropped", msg.Sender)
		}
		return nil
	}
	return s.sendRemote(msg)
}

func (s *NetworkSender[T]) sendRemote(msg element.NetworkMessage[T]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		conn, err := net.DialTimeout("tcp", s.addr, 5*time.Second)
		if err != nil {
			return fmt.Errorf("network: dial %s: %w", s.addr, err)
		}
		s.conn = conn
	}
	frame, err := encodeFrame(msg)
	if err != nil {
		return fmt.Errorf("network: encode frame to %s: %w", s.addr, err)
	}
	if _, err := s.conn.Write(frame); err != nil {
		s.conn.Close()
		s.conn = nil
		return fmt.Errorf("network: write to %s: %w", s.addr, err)
	}
	return nil
}

// Close releases the underlying TCP connection, if any. Closing an
// already-local sender is a no-op.
func (s *NetworkSender[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

// typeTagOf returns a stable string naming T, embedded in every remote
// frame so a decoder can reject a cross-type mismatch instead of silently
// gob-decoding garbage into the wrong struct shape.
func typeTagOf[T any]() string {
	var zero T
	return reflect.TypeOf(&zero).Elem().String()
}

// encodeFrame serializes msg as: 4-byte tag length, tag bytes, 4-byte
// payload length, gob-encoded element.NetworkMessage[T].
func encodeFrame[T any](msg element.NetworkMessage[T]) ([]byte, error) {
	tag := typeTagOf[T]()

	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(msg); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	writeLenPrefixed(&out, []byte(tag))
	writeLenPrefixed(&out, payload.Bytes())
	return out.Bytes(), nil
}

func writeLenPrefixed(out *bytes.Buffer, b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	out.Write(lenBuf[:])
	out.Write(b)
}

func readLenPrefixed(r *bufio.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// decodeFrame reads one frame and rejects it as a protocol violation if the
// embedded type tag does not match T.
func decodeFrame[T any](r *bufio.Reader, wantTag string) (element.NetworkMessage[T], error) {
	var zero element.NetworkMessage[T]

	tagBytes, err := readLenPrefixed(r)
	if err != nil {
		return zero, err
	}
	if string(tagBytes) != wantTag {
		return zero, fmt.Errorf("network: protocol violation: frame type %q does not match expected %q", tagBytes, wantTag)
	}

	payload, err := readLenPrefixed(r)
	if err != nil {
		return zero, err
	}

	var msg element.NetworkMessage[T]
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&msg); err != nil {
		return zero, fmt.Errorf("network: decode frame: %w", err)
	}
	return msg, nil
}

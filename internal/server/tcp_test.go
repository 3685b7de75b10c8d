package server

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPChatScenario(t *testing.T) {
	_, addr := startTCP(t, testConfig())

	alice := loginTCP(t, addr, "alice")
	alice.expectSilence(t)

	intruder := dialTCP(t, addr)
	intruder.send(t, "login:alice")
	intruder.expect(t, "Логин alice занят, попробуйте другой")
	intruder.expectClosed(t)

	bob := loginTCP(t, addr, "bob")
	alice.expect(t, "Встречайте нового пользователя: bob")

	alice.send(t, "hello")
	alice.expect(t, "alice: hello")
	bob.expect(t, "alice: hello")

	bob.send(t, "users:online")
	bob.expect(t, "Сейчас онлайн:")
	bob.expect(t, "alice")
	bob.expect(t, "bob")
	alice.expectSilence(t)

	require.NoError(t, bob.conn.Close())
	alice.expect(t, "bob покинул чат")
}

func TestTCPBadLoginKeepsConnection(t *testing.T) {
	_, addr := startTCP(t, testConfig())

	c := dialTCP(t, addr)
	c.send(t, "hello")
	c.expect(t, "Неправильный логин")
	c.send(t, "users:online")
	c.expect(t, "Неправильный логин")

	c.send(t, "login:alice")
	c.expect(t, "Привет, alice!")
}

func TestTCPAcceptsCRLF(t *testing.T) {
	_, addr := startTCP(t, testConfig())

	c := dialTCP(t, addr)
	_, err := c.conn.Write([]byte("login: alice \r\nhi there\r\n"))
	require.NoError(t, err)

	c.expect(t, "Привет, alice!")
	c.expect(t, "Встречайте нового пользователя: alice")
	c.expect(t, "alice: hi there")
}

func TestTCPHistoryReplay(t *testing.T) {
	_, addr := startTCP(t, testConfig())

	alice := loginTCP(t, addr, "alice")
	alice.send(t, "first")
	alice.expect(t, "alice: first")
	alice.send(t, "second")
	alice.expect(t, "alice: second")

	bob := dialTCP(t, addr)
	bob.send(t, "login:bob")
	bob.expect(t, "alice: first")
	bob.expect(t, "alice: second")
	bob.expect(t, "Привет, bob!")
	bob.expect(t, "Встречайте нового пользователя: bob")
}

func TestTCPUnregisteredDisconnectIsSilent(t *testing.T) {
	srv, addr := startTCP(t, testConfig())

	alice := loginTCP(t, addr, "alice")
	anon := dialTCP(t, addr)
	anon.send(t, "hello")
	anon.expect(t, "Неправильный логин")

	require.NoError(t, anon.conn.Close())
	alice.expectSilence(t)
	assert.Eventually(t, func() bool { return srv.Chat().Registry().Len() == 1 }, ioTimeout, 10*time.Millisecond)
}

func TestTCPRateLimitDiscardsLines(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Burst = 3
	cfg.RateLimit.RefillInterval = time.Hour
	_, addr := startTCP(t, cfg)

	alice := loginTCP(t, addr, "alice")
	alice.send(t, "one")
	alice.send(t, "two")
	alice.send(t, "three")

	alice.expect(t, "alice: one")
	alice.expect(t, "alice: two")
	alice.expectSilence(t)
}

func TestTCPLineAtMaxSizeIsAccepted(t *testing.T) {
	cfg := testConfig()
	cfg.MaxLineSize = 32
	_, addr := startTCP(t, cfg)

	alice := loginTCP(t, addr, "alice")
	line := strings.Repeat("x", 32)
	alice.send(t, line)
	alice.expect(t, "alice: "+line)

	alice.send(t, strings.Repeat("y", 33))
	alice.expectClosed(t)
}

func TestTCPOversizedLineClosesConnection(t *testing.T) {
	cfg := testConfig()
	cfg.MaxLineSize = 32
	_, addr := startTCP(t, cfg)

	alice := loginTCP(t, addr, "alice")
	bob := loginTCP(t, addr, "bob")
	alice.expect(t, "Встречайте нового пользователя: bob")

	bob.send(t, strings.Repeat("x", 100))
	bob.expectClosed(t)
	alice.expect(t, "bob покинул чат")
}

package models

import (
	"net"
	"strconv"
)

// Proxy описывает SOCKS5-прокси, через который подключается сессия.
type Proxy struct {
	ID       int    `json:"id"`
	IP       string `json:"ip"`
	Port     int    `json:"port"`
	Login    string `json:"login"`
	Password string `json:"-"`
}

// Addr возвращает адрес прокси в виде host:port.
func (p Proxy) Addr() string {
	return net.JoinHostPort(p.IP, strconv.Itoa(p.Port))
}

// HasAuth сообщает, требует ли прокси логин и пароль.
func (p Proxy) HasAuth() bool {
	return p.Login != "" || p.Password != ""
}

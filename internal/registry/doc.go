// Package registry is the binding compiler. A Template collects handler
// declarations (method handlers, signal emitter hooks, property getters and
// setters) for one service object, and Bind resolves every declaration
// against a parsed interface catalog: interface auto-detection for
// unambiguous member names, existence checks, and a strict bijection check
// guaranteeing that every declared member has exactly one handler and every
// handler matches exactly one declared member.
//
// All validation happens once, before any call can be dispatched. A class of
// runtime protocol errors (calling a method nobody implemented, reading a
// property with no getter) is thereby converted into bind-time failures.
package registry

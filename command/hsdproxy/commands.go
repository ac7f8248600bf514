// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bitmark-inc/certgen"
	"github.com/bitmark-inc/exitwithstatus"

	"github.com/bitmark-inc/hsdproxy/bloom"
	"github.com/bitmark-inc/hsdproxy/configuration"
	"github.com/bitmark-inc/hsdproxy/fault"
)

const (
	rpcCertificateKeyFilename = "rpc.crt"
	rpcPrivateKeyFilename     = "rpc.key"

	certificateLifetime = 10 * 365 * 24 * time.Hour
)

// setup command handler
//
// commands that run to create key and certificate files or inspect
// filters; these commands cannot access the backend, the cache or the
// configuration file
func processSetupCommand(program string, arguments []string) bool {

	command := "help"
	if len(arguments) > 0 {
		command = arguments[0]
		arguments = arguments[1:]
	}

	switch command {
	case "gen-rpc-cert", "rpc":
		certificateFilename := getFilenameWithDirectory(arguments, rpcCertificateKeyFilename)
		privateKeyFilename := getFilenameWithDirectory(arguments, rpcPrivateKeyFilename)

		addresses := []string{}
		if len(arguments) >= 2 {
			for _, a := range arguments[1:] {
				if "" != a {
					addresses = append(addresses, a)
				}
			}
		}

		err := makeSelfSignedCertificate("rpc", certificateFilename, privateKeyFilename, 0 != len(addresses), addresses)
		if nil != err {
			fmt.Printf("generate RPC key: %q and certificate: %q error: %s\n", privateKeyFilename, certificateFilename, err)
			exitwithstatus.Exit(1)
		}
		fmt.Printf("generated RPC key: %q and certificate: %q\n", privateKeyFilename, certificateFilename)

	case "bloom-size", "size":
		if 1 != len(arguments) {
			exitwithstatus.Message("%s: bloom-size requires one element count", program)
		}
		m, k, size, err := bloomSize(arguments[0])
		if nil != err {
			exitwithstatus.Message("%s: bloom-size: %q error: %s", program, arguments[0], err)
		}
		fmt.Printf("m: %d  k: %d  bytes: %d\n", m, k, size)

	case "check-bloom", "check":
		if 2 != len(arguments) {
			exitwithstatus.Message("%s: check-bloom requires a filter and an element", program)
		}
		present, err := checkBloom(arguments[0], arguments[1])
		if nil != err {
			exitwithstatus.Message("%s: check-bloom error: %s", program, err)
		}
		if present {
			fmt.Printf("possibly present\n")
		} else {
			fmt.Printf("not present\n")
		}

	case "start", "run":
		return false // continue processing

	case "config-test", "cfg":
		return false // defer processing until configuration is read

	case "version", "v":
		fmt.Printf("%s\n", version)
		return true

	default:
		switch command {
		case "help", "h", "?":
		case "", " ":
			fmt.Printf("error: missing command\n")
		default:
			fmt.Printf("error: no such command: %q\n", command)
		}
		fmt.Printf("usage: %s [--help] [--quiet] --config-file=FILE [[command|help] arguments...]\n", program)

		fmt.Printf("supported commands:\n\n")
		fmt.Printf("  help                        (h)      - display this message\n\n")
		fmt.Printf("  version                     (v)      - display version sting\n\n")

		fmt.Printf("  gen-rpc-cert [DIR]          (rpc)    - create private key in:  %q\n", "DIR/"+rpcPrivateKeyFilename)
		fmt.Printf("                                         and the certificate in: %q\n", "DIR/"+rpcCertificateKeyFilename)
		fmt.Printf("\n")

		fmt.Printf("  gen-rpc-cert [DIR] [IPs...]          - create private key in:  %q\n", "DIR/"+rpcPrivateKeyFilename)
		fmt.Printf("                                         and the certificate in: %q\n", "DIR/"+rpcCertificateKeyFilename)
		fmt.Printf("\n")

		fmt.Printf("  bloom-size COUNT            (size)   - filter dimensions used for COUNT elements\n")
		fmt.Printf("\n")

		fmt.Printf("  check-bloom FILTER ELEMENT  (check)  - test a hex element against a hex filter\n")
		fmt.Printf("\n")

		fmt.Printf("  start                       (run)    - just run the program, same as no arguments\n")
		fmt.Printf("                                         for convienience when passing script arguments\n")
		fmt.Printf("\n")

		fmt.Printf("  config-test                 (cfg)    - just check the configuration file\n")
		fmt.Printf("\n")

		exitwithstatus.Exit(1)
	}

	// indicate processing complete and preform normal exit from main
	return true
}

// configuration file enquiry commands
// have configuration file read and decoded, but nothing else
func processConfigCommand(arguments []string, options *Configuration) bool {

	command := "help"
	if len(arguments) > 0 {
		command = arguments[0]
	}

	switch command {
	case "config-test", "cfg":
		b, err := json.Marshal(options)
		if nil != err {
			exitwithstatus.Message("error: %s", err)
		}
		var out bytes.Buffer
		json.Indent(&out, b, "", "  ")
		fmt.Printf("configuration: %s\n", out.String())

	default:
		return false
	}
	return true
}

// get the file name with the directory from arguments
func getFilenameWithDirectory(arguments []string, name string) string {
	directory := "."
	if len(arguments) >= 1 {
		directory = arguments[0]
	}
	return filepath.Join(directory, name)
}

// create a self-signed certificate
func makeSelfSignedCertificate(name string, certificateFileName string, privateKeyFileName string, override bool, extraHosts []string) error {

	if configuration.FileExists(certificateFileName) {
		return fault.ErrCertificateFileExists
	}

	if configuration.FileExists(privateKeyFileName) {
		return fault.ErrKeyFileExists
	}

	org := "hsdproxy self signed cert for: " + name
	validUntil := time.Now().Add(certificateLifetime)
	cert, key, err := certgen.NewTLSCertPair(org, validUntil, override, extraHosts)
	if nil != err {
		return err
	}

	if err = os.WriteFile(certificateFileName, cert, 0666); nil != err {
		return err
	}

	if err = os.WriteFile(privateKeyFileName, key, 0600); nil != err {
		os.Remove(certificateFileName)
		return err
	}

	return nil
}

// filter dimensions and encoded size for a decimal element count
func bloomSize(count string) (uint64, uint64, int, error) {
	n, err := strconv.Atoi(count)
	if nil != err {
		return 0, 0, 0, err
	}
	if n < 0 {
		return 0, 0, 0, fault.ErrInvalidCount
	}
	m, k := bloom.Recommended(n)
	filter, err := bloom.New(m, k)
	if nil != err {
		return 0, 0, 0, err
	}
	return m, k, len(filter.Bytes()), nil
}

// test a hex encoded element against a hex encoded filter
func checkBloom(filterHex string, elementHex string) (bool, error) {
	data, err := hex.DecodeString(filterHex)
	if nil != err {
		return false, err
	}
	filter, err := bloom.Decode(data)
	if nil != err {
		return false, err
	}
	element, err := hex.DecodeString(elementHex)
	if nil != err {
		return false, err
	}
	return filter.Contains(element), nil
}

// Package utils provides general-purpose utility functions for keen-iprules.
//
// # Components
//
//   - Address utilities: parse single IPs, CIDR prefixes and from-to ranges
//   - Port utilities: validate single ports and port ranges
//   - Host name utilities: tell DNS names from IP literals
//   - Path and file utilities: resolve relative paths, read size-bounded files
//
// # Example Usage
//
//	addr, err := utils.ParseAddress("8.8.8.8-9.9.9.9")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(addr.Kind == utils.AddressRange) // true
//
//	absPath := utils.ResolvePath("iprules.conf", "/opt/etc/keen-iprules")
//	// Returns: /opt/etc/keen-iprules/iprules.conf
package utils

// Package output renders gcctl command results as text tables or JSON.
package output

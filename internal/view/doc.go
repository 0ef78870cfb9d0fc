// Package view renders the HTML fragments pushed to the browser. The
// components are written in templ; run `templ generate` after editing a
// .templ file.
package view
